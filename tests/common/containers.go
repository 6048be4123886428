// Package common provides shared container helpers for integration tests.
package common

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// containerSpec describes one backing service image.
type containerSpec struct {
	name     string
	image    string
	port     string
	cmd      []string
	readyLog string
}

// sharedContainer starts its spec at most once per process.
type sharedContainer struct {
	spec containerSpec

	once      sync.Once
	container testcontainers.Container
	endpoint  string // host:port
	err       error
}

func (s *sharedContainer) start(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("container tests skipped in -short mode")
	}

	s.once.Do(func() {
		s.container, s.endpoint, s.err = run(context.Background(), s.spec)
	})
	if s.err != nil {
		t.Skipf("%s container unavailable: %v", s.spec.name, s.err)
	}
	return s.endpoint
}

func (s *sharedContainer) cleanup() {
	if s.container != nil {
		s.container.Terminate(context.Background())
	}
}

func run(ctx context.Context, spec containerSpec) (testcontainers.Container, string, error) {
	req := testcontainers.ContainerRequest{
		Image:        spec.image,
		ExposedPorts: []string{spec.port},
		Cmd:          spec.cmd,
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(spec.port),
			wait.ForLog(spec.readyLog),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("start %s container: %w", spec.name, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, "", fmt.Errorf("get %s host: %w", spec.name, err)
	}
	mapped, err := container.MappedPort(ctx, spec.port)
	if err != nil {
		container.Terminate(ctx)
		return nil, "", fmt.Errorf("get %s port: %w", spec.name, err)
	}
	return container, fmt.Sprintf("%s:%s", host, mapped.Port()), nil
}
