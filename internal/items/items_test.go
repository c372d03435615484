package items

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var admin = Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	ctx := context.Background()
	require.NoError(t, migrate.AutoMigrateModels(ctx, conn))
	_, err = migrate.SeedCatalog(ctx, conn)
	require.NoError(t, err)
	return conn
}

func newTestService(t *testing.T) (*service, *Repository) {
	t.Helper()
	repo := NewRepository(openTestDB(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return impl, repo
}

func ids(res *ListResult) []string {
	out := make([]string, 0, len(res.Items))
	for _, it := range res.Items {
		out = append(out, it.ID)
	}
	return out
}

func int64Ptr(v int64) *int64 { return &v }
func stringPtr(v string) *string { return &v }

func TestListFiltersAndSorts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.List(ctx, ListFilters{}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p5", "p4", "p3", "p2", "p1"}, ids(res))
	assert.Empty(t, res.NextCursor)

	res, err = svc.List(ctx, ListFilters{Categories: []string{" audio ", "WEARABLES"}, Sort: enums.ItemSortPriceAsc}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p4", "p3", "p1"}, ids(res))

	res, err = svc.List(ctx, ListFilters{Query: "KEYBOARD"}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, ids(res))

	res, err = svc.List(ctx, ListFilters{Query: "battery"}, pagination.Params{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p3"}, ids(res), "description matches count")

	res, err = svc.List(ctx, ListFilters{MinPriceCents: int64Ptr(7900), MaxPriceCents: int64Ptr(12900), Sort: enums.ItemSortPriceDesc}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p2", "p4"}, ids(res))

	_, err = svc.List(ctx, ListFilters{MinPriceCents: int64Ptr(10), MaxPriceCents: int64Ptr(5)}, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListPaginatesByPrice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	filters := ListFilters{Sort: enums.ItemSortPriceAsc}

	first, err := svc.List(ctx, filters, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"p5", "p4"}, ids(first))
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(ctx, filters, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, ids(second))

	third, err := svc.List(ctx, filters, pagination.Params{Limit: 2, Cursor: second.NextCursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids(third))
	assert.Empty(t, third.NextCursor)

	_, err = svc.List(ctx, filters, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetUnknownItem(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "nope")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	dto, err := svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "149.00", dto.PriceFormatted)
	assert.EqualValues(t, 1700000000000, dto.CreatedAt)
}

func TestAdminCRUD(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, admin, CreateInput{Title: "  Echo Mic ", PriceCents: 4500, Category: "Audio"})
	require.NoError(t, err)
	assert.Equal(t, "Echo Mic", created.Title)
	assert.Equal(t, "45.00", created.PriceFormatted)

	updated, err := svc.Update(ctx, admin, created.ID, UpdateInput{PriceCents: int64Ptr(3900), Description: stringPtr("USB mic")})
	require.NoError(t, err)
	assert.EqualValues(t, 3900, updated.Price)
	assert.Equal(t, "USB mic", updated.Description)
	assert.Equal(t, "Echo Mic", updated.Title, "partial update keeps title")

	_, err = svc.Update(ctx, admin, created.ID, UpdateInput{Title: stringPtr("  ")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.NoError(t, svc.Delete(ctx, admin, created.ID))
	err = svc.Delete(ctx, admin, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestMutationsRequireAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user := Actor{UserID: uuid.New(), Role: enums.UserRoleUser}

	_, err := svc.Create(ctx, user, CreateInput{Title: "x", PriceCents: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	_, err = svc.Update(ctx, user, "p1", UpdateInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	err = svc.Delete(ctx, Actor{}, "p1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, admin, CreateInput{Title: " ", PriceCents: 100})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Create(ctx, admin, CreateInput{Title: "Thing", PriceCents: -1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Create(ctx, admin, CreateInput{Title: "Thing", PriceCents: MaxPriceCents + 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Create(ctx, admin, CreateInput{Title: "Thing", PriceCents: MaxPriceCents})
	assert.NoError(t, err)
}

func TestLookup(t *testing.T) {
	_, repo := newTestService(t)
	lookup := NewLookup(repo)
	ctx := context.Background()

	ok, err := lookup.Exists(ctx, "p2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lookup.Exists(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	price, err := lookup.PriceOf(ctx, "p5")
	require.NoError(t, err)
	assert.EqualValues(t, 5900, price)

	_, err = lookup.PriceOf(ctx, "ghost")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestLookupConcurrentCalls(t *testing.T) {
	_, repo := newTestService(t)
	lookup := NewLookup(repo)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			price, err := lookup.PriceOf(ctx, "p1")
			if err == nil && price != 14900 {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "0.00", FormatCents(0))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "1234.50", FormatCents(123450))
}
