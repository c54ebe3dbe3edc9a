package ingest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/etp-tracker/internal/fetcher"
)

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) LoadIndex(ctx context.Context, cik string, policy fetcher.RefreshPolicy) (*fetcher.Index, error) {
	args := m.Called(ctx, cik, policy)
	ix, _ := args.Get(0).(*fetcher.Index)
	return ix, args.Error(1)
}
