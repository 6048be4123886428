package portfolio

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
)

// today returns the current calendar date. Replaced in tests.
var today = func() time.Time { return common.Day(time.Now()) }

// Add appends a new position built from stock. An empty id is replaced with a
// fresh UUID. A zero date means today.
func Add(h models.Holdings, stock models.NewStock, id string) (models.Holdings, models.Position, error) {
	symbol := strings.ToUpper(strings.TrimSpace(stock.Symbol))
	if symbol == "" {
		return h, models.Position{}, fmt.Errorf("%w: symbol is required", common.ErrInvalidInput)
	}
	if !common.IsPositiveFinite(stock.Quantity) {
		return h, models.Position{}, fmt.Errorf("%w: quantity must be positive, got %v", common.ErrInvalidInput, stock.Quantity)
	}
	if !common.IsPositiveFinite(stock.Price) {
		return h, models.Position{}, fmt.Errorf("%w: price must be a positive number, got %v", common.ErrInvalidInput, stock.Price)
	}
	exchange := models.NormalizeExchange(stock.Exchange)
	if !exchange.Valid() {
		return h, models.Position{}, fmt.Errorf("%w: unknown exchange %q", common.ErrInvalidInput, stock.Exchange)
	}

	date := stock.Date
	if date.IsZero() {
		date = today()
	}
	if id == "" {
		id = uuid.NewString()
	}

	pos := models.Position{
		ID:       id,
		Symbol:   symbol,
		Exchange: exchange,
		Quantity: stock.Quantity,
		Price:    stock.Price,
		Date:     common.Day(date),
	}

	out := h.Clone()
	out.Positions = append(out.Positions, pos)
	return out, pos, nil
}

// Sell closes sellQty units of a position and appends exactly one realized
// record. Selling the whole quantity removes the position; otherwise its
// quantity is reduced. Both effects land in the returned Holdings together.
// On error h is returned unchanged.
func Sell(h models.Holdings, positionID string, sellPrice, sellQty float64, sellDate time.Time, recordID string) (models.Holdings, models.RealizedRecord, error) {
	idx := h.FindPosition(positionID)
	if idx < 0 {
		return h, models.RealizedRecord{}, fmt.Errorf("%w: position %s", common.ErrNotFound, positionID)
	}
	pos := h.Positions[idx]

	if !common.IsPositiveFinite(sellQty) {
		return h, models.RealizedRecord{}, fmt.Errorf("%w: sell quantity must be positive, got %v", common.ErrInvalidQuantity, sellQty)
	}
	remaining := common.Dec(pos.Quantity).Sub(common.Dec(sellQty))
	if remaining.IsNegative() {
		return h, models.RealizedRecord{}, fmt.Errorf("%w: cannot sell %v of %v held", common.ErrInvalidQuantity, sellQty, pos.Quantity)
	}
	if !common.IsPositiveFinite(sellPrice) {
		return h, models.RealizedRecord{}, fmt.Errorf("%w: sell price must be a positive number, got %v", common.ErrInvalidInput, sellPrice)
	}

	if sellDate.IsZero() {
		sellDate = today()
	}
	sellDate = common.Day(sellDate)
	if sellDate.Before(common.Day(pos.Date)) {
		return h, models.RealizedRecord{}, fmt.Errorf("%w: sell date %s is before purchase date %s",
			common.ErrInvalidInput, sellDate.Format(common.DateLayout), pos.Date.Format(common.DateLayout))
	}

	if recordID == "" {
		recordID = uuid.NewString()
	}
	rec := NewRealizedRecord(recordID, pos, sellQty, sellPrice, sellDate)

	out := h.Clone()
	if remaining.IsZero() {
		out.Positions = append(out.Positions[:idx], out.Positions[idx+1:]...)
	} else {
		out.Positions[idx].Quantity = common.Float(remaining)
	}
	out.Records = append(out.Records, rec)
	return out, rec, nil
}

// Edit replaces the patched fields of a position.
func Edit(h models.Holdings, positionID string, patch models.PositionPatch) (models.Holdings, models.Position, error) {
	idx := h.FindPosition(positionID)
	if idx < 0 {
		return h, models.Position{}, fmt.Errorf("%w: position %s", common.ErrNotFound, positionID)
	}
	pos := h.Positions[idx]

	if patch.Symbol != nil {
		symbol := strings.ToUpper(strings.TrimSpace(*patch.Symbol))
		if symbol == "" {
			return h, models.Position{}, fmt.Errorf("%w: symbol is required", common.ErrInvalidInput)
		}
		pos.Symbol = symbol
	}
	if patch.Exchange != nil {
		exchange := models.NormalizeExchange(*patch.Exchange)
		if !exchange.Valid() {
			return h, models.Position{}, fmt.Errorf("%w: unknown exchange %q", common.ErrInvalidInput, *patch.Exchange)
		}
		pos.Exchange = exchange
	}
	if patch.Quantity != nil {
		if !common.IsPositiveFinite(*patch.Quantity) {
			return h, models.Position{}, fmt.Errorf("%w: quantity must be positive, got %v", common.ErrInvalidInput, *patch.Quantity)
		}
		pos.Quantity = *patch.Quantity
	}
	if patch.Price != nil {
		if !common.IsPositiveFinite(*patch.Price) {
			return h, models.Position{}, fmt.Errorf("%w: price must be a positive number, got %v", common.ErrInvalidInput, *patch.Price)
		}
		pos.Price = *patch.Price
	}
	if patch.Date != nil {
		if patch.Date.IsZero() {
			return h, models.Position{}, fmt.Errorf("%w: date is required", common.ErrInvalidInput)
		}
		pos.Date = common.Day(*patch.Date)
	}

	out := h.Clone()
	out.Positions[idx] = pos
	return out, pos, nil
}

// EditRecord replaces the patched fields of a realized record. Derived fields
// are not recomputed unless patch.Recompute is set; supplied profit, profit
// percentage and days held are stored as given.
func EditRecord(h models.Holdings, recordID string, patch models.RecordPatch) (models.Holdings, models.RealizedRecord, error) {
	idx := h.FindRecord(recordID)
	if idx < 0 {
		return h, models.RealizedRecord{}, fmt.Errorf("%w: record %s", common.ErrNotFound, recordID)
	}
	rec := h.Clone().Records[idx]

	if patch.Symbol != nil {
		symbol := strings.ToUpper(strings.TrimSpace(*patch.Symbol))
		if symbol == "" {
			return h, models.RealizedRecord{}, fmt.Errorf("%w: symbol is required", common.ErrInvalidInput)
		}
		rec.Symbol = symbol
	}
	if patch.Exchange != nil {
		exchange := models.NormalizeExchange(*patch.Exchange)
		if !exchange.Valid() {
			return h, models.RealizedRecord{}, fmt.Errorf("%w: unknown exchange %q", common.ErrInvalidInput, *patch.Exchange)
		}
		rec.Exchange = exchange
	}
	if patch.Quantity != nil {
		if !common.IsPositiveFinite(*patch.Quantity) {
			return h, models.RealizedRecord{}, fmt.Errorf("%w: quantity must be positive, got %v", common.ErrInvalidInput, *patch.Quantity)
		}
		rec.Quantity = *patch.Quantity
	}
	if patch.PurchasePrice != nil {
		if !common.IsPositiveFinite(*patch.PurchasePrice) {
			return h, models.RealizedRecord{}, fmt.Errorf("%w: purchase price must be a positive number", common.ErrInvalidInput)
		}
		rec.PurchasePrice = *patch.PurchasePrice
	}
	if patch.SellPrice != nil {
		if !common.IsPositiveFinite(*patch.SellPrice) {
			return h, models.RealizedRecord{}, fmt.Errorf("%w: sell price must be a positive number", common.ErrInvalidInput)
		}
		rec.SellPrice = *patch.SellPrice
	}
	if patch.PurchaseDate != nil {
		rec.PurchaseDate = common.Day(*patch.PurchaseDate)
	}
	if patch.SellDate != nil {
		rec.SellDate = common.Day(*patch.SellDate)
	}

	if rec.SellDate.Before(rec.PurchaseDate) {
		return h, models.RealizedRecord{}, fmt.Errorf("%w: sell date %s is before purchase date %s",
			common.ErrInvalidInput, rec.SellDate.Format(common.DateLayout), rec.PurchaseDate.Format(common.DateLayout))
	}

	if patch.Recompute {
		rec = recompute(rec)
	} else {
		if patch.Profit != nil {
			rec.Profit = *patch.Profit
		}
		if patch.ProfitPercentage != nil {
			rec.ProfitPercentage = common.Ptr(*patch.ProfitPercentage)
		}
		if patch.DaysHeld != nil {
			rec.DaysHeld = *patch.DaysHeld
		}
	}

	out := h.Clone()
	out.Records[idx] = rec
	return out, rec, nil
}

// Delete removes a position. An absent id is a no-op and reports changed=false.
func Delete(h models.Holdings, positionID string) (models.Holdings, bool) {
	idx := h.FindPosition(positionID)
	if idx < 0 {
		return h, false
	}
	out := h.Clone()
	out.Positions = append(out.Positions[:idx], out.Positions[idx+1:]...)
	return out, true
}

// DeleteRecord removes a realized record. An absent id is a no-op.
func DeleteRecord(h models.Holdings, recordID string) (models.Holdings, bool) {
	idx := h.FindRecord(recordID)
	if idx < 0 {
		return h, false
	}
	out := h.Clone()
	out.Records = append(out.Records[:idx], out.Records[idx+1:]...)
	return out, true
}
