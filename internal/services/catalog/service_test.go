package catalog

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"aimarket/internal/models"
	"aimarket/internal/services/images"
)

type fakeImages struct {
	uploads []string
	deletes []string
	failAt  int // 1-based index of the upload that fails; 0 never fails
}

func (f *fakeImages) Upload(_ context.Context, filename string, _ io.Reader, _ int64) (images.Object, error) {
	if f.failAt > 0 && len(f.uploads)+1 == f.failAt {
		return images.Object{}, errors.New("storage unavailable")
	}
	f.uploads = append(f.uploads, filename)
	return images.Object{URL: "http://cdn.local/img/" + filename, Key: "img/" + filename}, nil
}

func (f *fakeImages) Delete(_ context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	return nil
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *fakeImages) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	imgs := &fakeImages{}
	return NewService(db, imgs, zap.NewNop().Sugar()), mock, imgs
}

func TestCreate_UploadsImagesBeforeInsert(t *testing.T) {
	svc, mock, imgs := newTestService(t)
	mock.ExpectQuery(`INSERT INTO "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("prod-1"))

	owner := models.Profile{ID: "owner-1", DisplayName: "Acme AI", AvatarURL: "http://cdn.local/a.png"}
	files := []UploadFile{
		{Name: "front.png", Reader: strings.NewReader("x"), Size: 1},
		{Name: "back.png", Reader: strings.NewReader("y"), Size: 1},
	}
	id, err := svc.Create(context.Background(), owner, CreateInput{
		Name: "GPT-4 Vision Pro", PricePer1K: 0.5, Category: "vision",
	}, files)

	require.NoError(t, err)
	assert.Equal(t, "prod-1", id)
	assert.Equal(t, []string{"front.png", "back.png"}, imgs.uploads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UploadFailureAbortsWrite(t *testing.T) {
	svc, mock, imgs := newTestService(t)
	imgs.failAt = 2

	files := []UploadFile{
		{Name: "ok.png", Reader: strings.NewReader("x"), Size: 1},
		{Name: "boom.png", Reader: strings.NewReader("y"), Size: 1},
	}
	_, err := svc.Create(context.Background(), models.Profile{ID: "owner-1"}, CreateInput{Name: "m"}, files)

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPersistence)
	// the first upload is orphaned; no compensating delete happens
	assert.Equal(t, []string{"ok.png"}, imgs.uploads)
	assert.Empty(t, imgs.deletes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByOwner_SortsByUpdatedAtDesc(t *testing.T) {
	svc, mock, _ := newTestService(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE owner_id = \$1`).
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "updated_at"}).
			AddRow("old", "owner-1", base).
			AddRow("new", "owner-1", base.Add(time.Hour)).
			AddRow("mid", "owner-1", base.Add(time.Minute)))

	got := svc.ListByOwner(context.Background(), "owner-1")
	require.Len(t, got, 3)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, "old", got[2].ID)
}

func TestListByOwner_SwallowsStoreErrors(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM "products"`).
		WillReturnError(errors.New("connection refused"))

	got := svc.ListByOwner(context.Background(), "owner-1")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListActive_DropsDepletedStock(t *testing.T) {
	svc, mock, _ := newTestService(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE status = \$1`).
		WithArgs(models.StatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "stock", "updated_at"}).
			AddRow("unlimited", models.StatusActive, nil, now).
			AddRow("depleted", models.StatusActive, int64(0), now).
			AddRow("plenty", models.StatusActive, int64(7), now))

	got := svc.ListActive(context.Background(), "")
	var ids []string
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"unlimited", "plenty"}, ids)
}

func TestListActive_SwallowsStoreErrors(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM "products"`).
		WillReturnError(errors.New("connection refused"))

	got := svc.ListActive(context.Background(), "chatbot")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGet_NotFound(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetStock_ZeroFlipsOutOfStock(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("p1", models.StatusActive))
	mock.ExpectExec(`UPDATE "products" SET`).
		WithArgs(models.StatusOutOfStock, int64(0), sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.SetStock(context.Background(), "p1", 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStock_PositiveReactivates(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("p1", models.StatusOutOfStock))
	mock.ExpectExec(`UPDATE "products" SET`).
		WithArgs(models.StatusActive, int64(4), sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.SetStock(context.Background(), "p1", 4))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_PatchesSuppliedFieldsOnly(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("p1", "old name"))
	// only price_per_1k and updated_at in the SET clause
	mock.ExpectExec(`UPDATE "products" SET "price_per_1k"=\$1,"updated_at"=\$2`).
		WithArgs(0.0, sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// price 0 passes: updates skip create-time validation
	price := 0.0
	require.NoError(t, svc.Update(context.Background(), "p1", UpdateInput{PricePer1K: &price}, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_ReplacesImageList(t *testing.T) {
	svc, mock, imgs := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "images"}).
			AddRow("p1", []byte(`["http://cdn.local/img/old.png"]`)))
	mock.ExpectExec(`UPDATE "products" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	files := []UploadFile{{Name: "fresh.png", Reader: strings.NewReader("x"), Size: 1}}
	require.NoError(t, svc.Update(context.Background(), "p1", UpdateInput{}, files))
	assert.Equal(t, []string{"fresh.png"}, imgs.uploads)
}

func TestUpdate_NotFound(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := svc.Update(context.Background(), "missing", UpdateInput{}, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDelete_StubsImageCleanupThenDeletesRow(t *testing.T) {
	svc, mock, imgs := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "images"}).
			AddRow("p1", []byte(`["http://cdn.local/img/a.png","http://cdn.local/img/b.png"]`)))
	mock.ExpectExec(`DELETE FROM "products"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.Delete(context.Background(), "p1"))
	assert.Equal(t, []string{"http://cdn.local/img/a.png", "http://cdn.local/img/b.png"}, imgs.deletes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_SubstringOverActive(t *testing.T) {
	svc, mock, _ := newTestService(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE status = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "updated_at"}).
			AddRow("p1", "GPT-4 Vision Pro", models.StatusActive, now).
			AddRow("p2", "Claude Pro", models.StatusActive, now))

	got := svc.Search(context.Background(), "gpt")
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
}
