package pagination

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type row struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func setupDB(t *testing.T, n int) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&row{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for i := 0; i < n; i++ {
		if err := db.Create(&row{Name: fmt.Sprintf("row-%02d", i)}).Error; err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return db
}

func TestNewParams(t *testing.T) {
	tests := []struct {
		page, perPage     int
		wantPage, wantPer int
	}{
		{0, 0, 1, 1},
		{-3, 20, 1, 20},
		{2, 500, 2, 100},
		{5, 10, 5, 10},
		{1 << 62, 20, MaxPage, 20},
		{MaxPage + 1, 100, MaxPage, 100},
	}
	for _, tt := range tests {
		p := NewParams(tt.page, tt.perPage)
		if p.Page != tt.wantPage || p.PerPage != tt.wantPer {
			t.Errorf("NewParams(%d, %d) = %+v", tt.page, tt.perPage, p)
		}
		if p.Offset() < 0 {
			t.Errorf("NewParams(%d, %d).Offset() = %d, expected >= 0", tt.page, tt.perPage, p.Offset())
		}
	}
}

func TestNewMeta_HugePage(t *testing.T) {
	p := NewParams(1<<62, 20)
	m := NewMeta(45, p.Page, p.PerPage)
	if m.HasNext {
		t.Errorf("HasNext = %v, expected false", m.HasNext)
	}
	if !m.HasPrev {
		t.Errorf("HasPrev = %v, expected true", m.HasPrev)
	}
}

func TestNewMeta(t *testing.T) {
	tests := []struct {
		total         int64
		page, perPage int
		pages         int
		prev, next    bool
	}{
		{0, 1, 20, 0, false, false},
		{45, 1, 20, 3, false, true},
		{45, 3, 20, 3, true, false},
		{40, 2, 20, 2, true, false},
		{41, 2, 20, 3, true, true},
	}
	for _, tt := range tests {
		m := NewMeta(tt.total, tt.page, tt.perPage)
		if m.Pages != tt.pages || m.HasPrev != tt.prev || m.HasNext != tt.next {
			t.Errorf("NewMeta(%d, %d, %d) = %+v", tt.total, tt.page, tt.perPage, m)
		}
	}
}

func TestPaginate_PagesSumToTotal(t *testing.T) {
	db := setupDB(t, 47)

	for _, perPage := range []int{1, 7, 20, 47, 100} {
		t.Run(fmt.Sprintf("per_page=%d", perPage), func(t *testing.T) {
			seen := 0
			page := 1
			for {
				items, meta, err := Paginate[row](db.Model(&row{}), NewParams(page, perPage), OrderBy("id"))
				if err != nil {
					t.Fatalf("Paginate: %v", err)
				}
				seen += len(items)
				if meta.Total != 47 {
					t.Fatalf("total = %d", meta.Total)
				}
				if page == meta.Pages {
					if meta.HasNext {
						t.Errorf("has_next true on last page %d", page)
					}
					break
				}
				if !meta.HasNext {
					t.Fatalf("has_next false before last page (page %d of %d)", page, meta.Pages)
				}
				page++
			}
			if seen != 47 {
				t.Errorf("pages summed to %d rows, expected 47", seen)
			}
		})
	}
}

func TestPaginate_FilteredQuery(t *testing.T) {
	db := setupDB(t, 30)

	items, meta, err := Paginate[row](db.Where("id > ?", 25), NewParams(1, 20), OrderBy("id desc"))
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	if meta.Total != 5 || len(items) != 5 {
		t.Fatalf("expected 5 rows, got total=%d len=%d", meta.Total, len(items))
	}
	if items[0].ID != 30 {
		t.Errorf("expected descending order, first id = %d", items[0].ID)
	}
}
