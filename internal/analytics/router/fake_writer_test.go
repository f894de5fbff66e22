package router

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
)

type fakeWriter struct {
	inserted []types.SaleFactRow
	err      error
}

func (f *fakeWriter) InsertSaleFact(_ context.Context, row types.SaleFactRow) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, row)
	return nil
}
