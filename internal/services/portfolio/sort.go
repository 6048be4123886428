package portfolio

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
)

// sortKey is a comparable view of one field. A nil num with isText false is
// an unavailable value and always sorts last.
type sortKey struct {
	num    *float64
	text   string
	isText bool
}

func numKey(v float64) sortKey { return sortKey{num: &v} }
func optKey(v *float64) sortKey { return sortKey{num: v} }
func textKey(s string) sortKey { return sortKey{text: strings.ToLower(s), isText: true} }
func timeKey(t time.Time) sortKey { return numKey(float64(t.Unix())) }

var positionKeys = map[string]func(models.PositionView) sortKey{
	"symbol":            func(v models.PositionView) sortKey { return textKey(v.Symbol) },
	"exchange":          func(v models.PositionView) sortKey { return textKey(string(v.Exchange)) },
	"quantity":          func(v models.PositionView) sortKey { return numKey(v.Quantity) },
	"price":             func(v models.PositionView) sortKey { return numKey(v.Price) },
	"date":              func(v models.PositionView) sortKey { return timeKey(v.Date) },
	"invested":          func(v models.PositionView) sortKey { return numKey(v.Invested) },
	"current_price":     func(v models.PositionView) sortKey { return optKey(v.CurrentPrice) },
	"current_value":     func(v models.PositionView) sortKey { return optKey(v.CurrentValue) },
	"profit":            func(v models.PositionView) sortKey { return optKey(v.Profit) },
	"profit_percentage": func(v models.PositionView) sortKey { return optKey(v.ProfitPercentage) },
	"days_held":         func(v models.PositionView) sortKey { return numKey(float64(v.DaysHeld)) },
}

var recordKeys = map[string]func(models.RealizedRecord) sortKey{
	"symbol":            func(r models.RealizedRecord) sortKey { return textKey(r.Symbol) },
	"exchange":          func(r models.RealizedRecord) sortKey { return textKey(string(r.Exchange)) },
	"quantity":          func(r models.RealizedRecord) sortKey { return numKey(r.Quantity) },
	"purchase_price":    func(r models.RealizedRecord) sortKey { return numKey(r.PurchasePrice) },
	"purchase_date":     func(r models.RealizedRecord) sortKey { return timeKey(r.PurchaseDate) },
	"sell_price":        func(r models.RealizedRecord) sortKey { return numKey(r.SellPrice) },
	"sell_date":         func(r models.RealizedRecord) sortKey { return timeKey(r.SellDate) },
	"profit":            func(r models.RealizedRecord) sortKey { return numKey(r.Profit) },
	"profit_percentage": func(r models.RealizedRecord) sortKey { return optKey(r.ProfitPercentage) },
	"days_held":         func(r models.RealizedRecord) sortKey { return numKey(float64(r.DaysHeld)) },
	"total_amount":      func(r models.RealizedRecord) sortKey { return numKey(TotalAmount(r)) },
}

// less orders a before b. Unavailable values go last in either direction.
func less(a, b sortKey, desc bool) bool {
	aNil := !a.isText && a.num == nil
	bNil := !b.isText && b.num == nil
	if aNil || bNil {
		return !aNil && bNil
	}
	if a.isText {
		if desc {
			return a.text > b.text
		}
		return a.text < b.text
	}
	if desc {
		return *a.num > *b.num
	}
	return *a.num < *b.num
}

func parseDir(dir string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
		return false, nil
	case "desc":
		return true, nil
	default:
		return false, fmt.Errorf("%w: sort direction %q must be asc or desc", common.ErrInvalidInput, dir)
	}
}

// SortPositions stably sorts views in place by a JSON field name.
// An empty field leaves the order unchanged.
func SortPositions(views []models.PositionView, field, dir string) error {
	if field == "" {
		return nil
	}
	key, ok := positionKeys[strings.ToLower(field)]
	if !ok {
		return fmt.Errorf("%w: cannot sort positions by %q", common.ErrInvalidInput, field)
	}
	desc, err := parseDir(dir)
	if err != nil {
		return err
	}
	sort.SliceStable(views, func(i, j int) bool {
		return less(key(views[i]), key(views[j]), desc)
	})
	return nil
}

// SortRecords stably sorts records in place by a JSON field name.
func SortRecords(records []models.RealizedRecord, field, dir string) error {
	if field == "" {
		return nil
	}
	key, ok := recordKeys[strings.ToLower(field)]
	if !ok {
		return fmt.Errorf("%w: cannot sort records by %q", common.ErrInvalidInput, field)
	}
	desc, err := parseDir(dir)
	if err != nil {
		return err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return less(key(records[i]), key(records[j]), desc)
	})
	return nil
}
