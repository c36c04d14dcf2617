package metadata

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint `gorm:"primaryKey"`
	Name        string
	Price       decimal.Decimal
	CreatedAt   time.Time
	CategoryID  int
	Category    *Category `gorm:"foreignKey:CategoryID"`
	Tags        []Tag
	Description *string
	Internal    string `sqlmodel:"-"`
	secret      string
}

type Category struct {
	ID   int
	Name string
}

type Tag struct {
	ID   int
	Name string
}

type Base struct {
	ID        int64 `sqlmodel:"column:id,key"`
	UpdatedAt time.Time
}

type Article struct {
	Base
	Title string `sqlmodel:"column:headline"`
	Body  string
}

func (Article) TableName() string { return "news_articles" }

type Versioned struct {
	ID      int64
	Payload string
}

func (v *Versioned) RowID() (any, bool) { return v.ID * 10, v.ID != 0 }

type OrderLine struct {
	OrderID   int    `gorm:"primaryKey;column:order_no"`
	LineNo    int    `gorm:"primaryKey"`
	ProductID string `sqlmodel:"column:sku"`
}

func columnNames(meta *EntityMetadata) []string {
	out := make([]string, 0, len(meta.Columns))
	for _, c := range meta.Columns {
		out = append(out, c.Name)
	}
	return out
}

func TestAnalyzeEntity_Basic(t *testing.T) {
	meta, err := AnalyzeEntity(Product{})
	if err != nil {
		t.Fatalf("AnalyzeEntity failed: %v", err)
	}

	if meta.TableName != "products" {
		t.Errorf("Expected table products, got %q", meta.TableName)
	}
	if meta.EntityName != "Product" {
		t.Errorf("Expected entity name Product, got %q", meta.EntityName)
	}
	want := []string{"id", "name", "price", "created_at", "category_id", "description"}
	if got := columnNames(meta); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected columns %v, got %v", want, got)
	}
	if len(meta.KeyColumns) != 1 || meta.KeyColumns[0].Name != "id" {
		t.Fatalf("Expected key column id, got %+v", meta.KeyColumns)
	}
	if !meta.KeyColumns[0].AutoIncrement {
		t.Error("Expected unsigned single key to be auto-increment")
	}
	if meta.RowID != nil {
		t.Error("Expected no row identity")
	}
}

func TestAnalyzeEntity_Accessors(t *testing.T) {
	meta, err := AnalyzeEntity(&Article{})
	if err != nil {
		t.Fatalf("AnalyzeEntity failed: %v", err)
	}

	a := &Article{Base: Base{ID: 9}, Title: "Hello", Body: "World"}
	values := map[string]any{}
	for _, c := range meta.Columns {
		values[c.Name] = c.Get(a)
	}
	if values["id"] != int64(9) || values["headline"] != "Hello" || values["body"] != "World" {
		t.Errorf("Unexpected values %v", values)
	}

	if got := meta.Columns[0].Get((*Article)(nil)); got != nil {
		t.Errorf("Expected nil from nil model, got %v", got)
	}
	if got := meta.Columns[0].Get(*a); got != int64(9) {
		t.Errorf("Expected accessor to accept values, got %v", got)
	}
}

func TestAnalyzeEntity_EmbeddedAndTableName(t *testing.T) {
	meta, err := AnalyzeEntity(Article{})
	if err != nil {
		t.Fatalf("AnalyzeEntity failed: %v", err)
	}
	if meta.TableName != "news_articles" {
		t.Errorf("Expected custom table name, got %q", meta.TableName)
	}
	want := []string{"id", "updated_at", "headline", "body"}
	if got := columnNames(meta); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected columns %v, got %v", want, got)
	}
	if len(meta.KeyColumns) != 1 || meta.KeyColumns[0].AutoIncrement {
		t.Errorf("Expected one non auto-increment key, got %+v", meta.KeyColumns)
	}
}

func TestAnalyzeEntity_CompositeGormKeys(t *testing.T) {
	meta, err := AnalyzeEntity(OrderLine{})
	if err != nil {
		t.Fatalf("AnalyzeEntity failed: %v", err)
	}
	keys := make([]string, 0, len(meta.KeyColumns))
	for _, k := range meta.KeyColumns {
		keys = append(keys, k.Name)
	}
	if !reflect.DeepEqual(keys, []string{"order_no", "line_no"}) {
		t.Errorf("Expected keys [order_no line_no], got %v", keys)
	}
	if _, ok := meta.Column("sku"); !ok {
		t.Error("Expected sku column")
	}
}

func TestAnalyzeEntity_RowIDField(t *testing.T) {
	type Doc struct {
		ID    int64
		Title string
		Row   *int64 `sqlmodel:"rowid"`
	}
	meta, err := AnalyzeEntity(Doc{})
	if err != nil {
		t.Fatalf("AnalyzeEntity failed: %v", err)
	}
	if _, ok := meta.Column("row"); ok {
		t.Error("Expected rowid field not to be a column")
	}
	if meta.RowID == nil {
		t.Fatal("Expected a row identity accessor")
	}

	if _, ok := meta.RowID(&Doc{ID: 1}); ok {
		t.Error("Expected nil rowid to mean absent")
	}
	zero := int64(0)
	if _, ok := meta.RowID(&Doc{Row: &zero}); ok {
		t.Error("Expected zero rowid to mean absent")
	}
	id := int64(77)
	if v, ok := meta.RowID(&Doc{Row: &id}); !ok || v != int64(77) {
		t.Errorf("Expected rowid 77, got %v %v", v, ok)
	}
}

func TestAnalyzeEntity_RowIdentifier(t *testing.T) {
	meta, err := AnalyzeEntity(Versioned{})
	if err != nil {
		t.Fatalf("AnalyzeEntity failed: %v", err)
	}
	if meta.RowID == nil {
		t.Fatal("Expected RowIdentifier to be detected")
	}
	if v, ok := meta.RowID(&Versioned{ID: 2}); !ok || v != int64(20) {
		t.Errorf("Expected rowid 20, got %v %v", v, ok)
	}
}

func TestAnalyzeEntity_Errors(t *testing.T) {
	if _, err := AnalyzeEntity(nil); err == nil {
		t.Error("Expected error for nil entity")
	}
	if _, err := AnalyzeEntity(42); err == nil {
		t.Error("Expected error for non-struct entity")
	}

	type Dup struct {
		A string `sqlmodel:"column:x"`
		B string `sqlmodel:"column:x"`
	}
	if _, err := AnalyzeEntity(Dup{}); err == nil {
		t.Error("Expected error for duplicate column")
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"ProductID":   "product_id",
		"XMLParser":   "xml_parser",
		"Name":        "name",
		"CreatedAt":   "created_at",
		"HTTPRequest": "http_request",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeclare(t *testing.T) {
	type Todo struct {
		ID    int64
		Title string
		Done  bool
		Row   int64
	}

	meta, err := Declare[Todo]("todo",
		Col[Todo]("id", "ID", func(t *Todo) any { return t.ID }).Key().AutoIncrement(),
		Col[Todo]("title", "Title", func(t *Todo) any { return t.Title }),
		Col[Todo]("done", "Done", func(t *Todo) any { return t.Done }),
		Col[Todo]("rowid", "Row", func(t *Todo) any { return t.Row }).RowID(),
	)
	if err != nil {
		t.Fatalf("Declare failed: %v", err)
	}

	if got := columnNames(meta); !reflect.DeepEqual(got, []string{"id", "title", "done"}) {
		t.Errorf("Unexpected columns %v", got)
	}
	if len(meta.KeyColumns) != 1 || !meta.KeyColumns[0].AutoIncrement {
		t.Errorf("Unexpected keys %+v", meta.KeyColumns)
	}
	todo := Todo{ID: 7, Title: "buy milk", Row: 3}
	if got := meta.Columns[1].Get(&todo); got != "buy milk" {
		t.Errorf("Expected title via pointer, got %v", got)
	}
	if got := meta.Columns[1].Get(todo); got != "buy milk" {
		t.Errorf("Expected title via value, got %v", got)
	}
	if got := meta.Columns[1].Get("not a todo"); got != nil {
		t.Errorf("Expected nil for a foreign type, got %v", got)
	}
	if v, ok := meta.RowID(&todo); !ok || v != int64(3) {
		t.Errorf("Expected rowid 3, got %v %v", v, ok)
	}

	if _, err := Declare[Todo](""); err == nil {
		t.Error("Expected error for missing table")
	}
	if _, err := Declare[Todo]("todo", Col[Todo]("id", "ID", nil)); err == nil {
		t.Error("Expected error for missing accessor")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Register(Product{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := r.Register(&Product{}); err == nil {
		t.Error("Expected duplicate registration to fail")
	}

	for _, model := range []any{Product{}, &Product{}} {
		meta, err := r.Lookup(model)
		if err != nil {
			t.Fatalf("Lookup(%T) failed: %v", model, err)
		}
		if meta.TableName != "products" {
			t.Errorf("Unexpected table %q", meta.TableName)
		}
	}

	if _, err := r.Lookup(Category{}); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Expected ErrNotRegistered, got %v", err)
	}
	if _, err := r.Lookup(nil); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Expected ErrNotRegistered for nil, got %v", err)
	}

	r.MustRegister(Category{})
	if got := len(r.Entities()); got != 2 {
		t.Errorf("Expected 2 entities, got %d", got)
	}
}

func TestRegistry_ConcurrentLookup(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Product{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := r.Lookup(&Product{}); err != nil {
					t.Errorf("Lookup failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
