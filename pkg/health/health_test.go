package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                  { return s.name }
func (s stubChecker) Check(_ context.Context) error { return s.err }

func TestCheckerRegistry(t *testing.T) {
	tests := []struct {
		name     string
		critical error
		optional error
		want     Status
	}{
		{"all healthy", nil, nil, StatusHealthy},
		{"optional down", nil, errors.New("redis down"), StatusDegraded},
		{"critical down", errors.New("disk full"), nil, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			r.Register(stubChecker{name: "storage", err: tt.critical})
			r.RegisterOptional(stubChecker{name: "redis", err: tt.optional})

			h := r.Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Checks, 2)
		})
	}
}

func TestStorageChecker(t *testing.T) {
	fs := memfs.New()
	assert.NoError(t, NewStorageChecker(fs).Check(context.Background()))

	_, err := fs.Stat(".health")
	assert.Error(t, err, "probe file should be removed")
}

func TestIndexChecker(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()
	assert.NoError(t, NewIndexChecker(up.URL, up.Client()).Check(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	assert.Error(t, NewIndexChecker(down.URL, down.Client()).Check(context.Background()))
}
