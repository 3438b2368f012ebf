package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"Gin_postgres_redis_equipment_tool/cache"
	"Gin_postgres_redis_equipment_tool/clock"
	"Gin_postgres_redis_equipment_tool/models"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func stubCodes(s string) (string, error) { return "qr:" + s, nil }

func newTestRegistry(store *fakeStore, c Cache) *Registry {
	return NewRegistry(store, c, clock.NewFixed(testNow), WithCodeGenerator(stubCodes))
}

func TestRegistry_CreateBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("fans out serials from base", func(t *testing.T) {
		store := newFakeStore()
		reg := newTestRegistry(store, cache.Nop{})

		units, err := reg.CreateBatch(ctx, CreateBatchInput{Name: "Laptop", Type: "computer", BaseSerial: "EQ1", Quantity: 3})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(units) != 3 {
			t.Fatalf("expected 3 units, got %d", len(units))
		}
		for i, u := range units {
			want := fmt.Sprintf("EQ1%03d", i+1)
			if u.SerialValue() != want {
				t.Fatalf("unit %d: expected serial %s, got %s", i, want, u.SerialValue())
			}
			if u.Status != models.StatusAvailable || u.Condition != models.ConditionGood {
				t.Fatalf("unit %d: expected available/good, got %s/%s", i, u.Status, u.Condition)
			}
			if u.StockThreshold != models.DefaultStockThreshold {
				t.Fatalf("unit %d: expected threshold %d, got %d", i, models.DefaultStockThreshold, u.StockThreshold)
			}
			if u.QRCode != "qr:"+want {
				t.Fatalf("unit %d: expected qr code for %s, got %q", i, want, u.QRCode)
			}
			if _, ok := store.equipment[u.ID]; !ok {
				t.Fatalf("unit %d not persisted", i)
			}
		}
	})

	t.Run("generates base serial when empty", func(t *testing.T) {
		store := newFakeStore()
		reg := newTestRegistry(store, cache.Nop{})

		units, err := reg.CreateBatch(ctx, CreateBatchInput{Name: "Drill", Type: "tool"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := fmt.Sprintf("EQ%06d001", testNow.UnixMilli()%1_000_000)
		if len(units) != 1 || units[0].SerialValue() != want {
			t.Fatalf("expected one unit with serial %s, got %+v", want, units)
		}
	})

	t.Run("duplicate serial leaves nothing behind", func(t *testing.T) {
		store := newFakeStore()
		store.addEquipment(models.Equipment{ID: "existing", Name: "Laptop", Type: "computer", Serial: strPtr("EQ1002"), Status: models.StatusAvailable})
		reg := newTestRegistry(store, cache.Nop{})

		_, err := reg.CreateBatch(ctx, CreateBatchInput{Name: "Laptop", Type: "computer", BaseSerial: "EQ1", Quantity: 3})
		if !errors.Is(err, models.ErrDuplicateSerial) {
			t.Fatalf("expected ErrDuplicateSerial, got %v", err)
		}
		if len(store.equipment) != 1 {
			t.Fatalf("expected only the existing unit, got %d units", len(store.equipment))
		}
	})

	t.Run("storage failure mid batch rolls back", func(t *testing.T) {
		store := newFakeStore()
		store.createLimit = 2
		store.createErr = errors.New("connection reset")
		reg := newTestRegistry(store, cache.Nop{})

		if _, err := reg.CreateBatch(ctx, CreateBatchInput{Name: "Laptop", Type: "computer", BaseSerial: "EQ1", Quantity: 3}); err == nil {
			t.Fatalf("expected error")
		}
		if len(store.equipment) != 0 {
			t.Fatalf("expected no units, got %d", len(store.equipment))
		}
	})

	t.Run("qr failure still creates unit", func(t *testing.T) {
		store := newFakeStore()
		reg := NewRegistry(store, cache.Nop{}, clock.NewFixed(testNow), WithCodeGenerator(func(string) (string, error) {
			return "", errors.New("encoder down")
		}))

		units, err := reg.CreateBatch(ctx, CreateBatchInput{Name: "Laptop", Type: "computer", BaseSerial: "EQ1"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(units) != 1 || units[0].QRCode != "" {
			t.Fatalf("expected one unit without qr code, got %+v", units)
		}
	})

	t.Run("real qr encoder", func(t *testing.T) {
		store := newFakeStore()
		reg := NewRegistry(store, cache.Nop{}, clock.NewFixed(testNow))

		units, err := reg.CreateBatch(ctx, CreateBatchInput{Name: "Laptop", Type: "computer", BaseSerial: "EQ1"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if units[0].QRCode == "" {
			t.Fatalf("expected qr code to be set")
		}
	})

	negative := -1
	invalid := []struct {
		name string
		in   CreateBatchInput
		want error
	}{
		{"missing name", CreateBatchInput{Type: "tool"}, models.ErrNameRequired},
		{"bad condition", CreateBatchInput{Name: "a", Type: "b", Condition: "shiny"}, models.ErrInvalidCondition},
		{"bad status", CreateBatchInput{Name: "a", Type: "b", Status: "lost"}, models.ErrInvalidStatus},
		{"checked out status", CreateBatchInput{Name: "a", Type: "b", Status: models.StatusCheckedOut}, models.ErrEquipmentInUse},
		{"quantity too large", CreateBatchInput{Name: "a", Type: "b", Quantity: 501}, models.ErrInvalidQuantity},
		{"negative quantity", CreateBatchInput{Name: "a", Type: "b", Quantity: -2}, models.ErrInvalidQuantity},
		{"negative threshold", CreateBatchInput{Name: "a", Type: "b", StockThreshold: &negative}, models.ErrInvalidThreshold},
	}
	for _, tc := range invalid {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			reg := newTestRegistry(store, cache.Nop{})
			if _, err := reg.CreateBatch(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(store.equipment) != 0 {
				t.Fatalf("expected no units created")
			}
		})
	}
}

func TestRegistry_StatusChanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	seed := func() (*Registry, *fakeStore) {
		store := newFakeStore()
		store.addEquipment(models.Equipment{ID: "a", Name: "Cam", Type: "video", Serial: strPtr("CAM001"), Status: models.StatusAvailable})
		store.addEquipment(models.Equipment{ID: "b", Name: "Cam", Type: "video", Serial: strPtr("CAM002"), Status: models.StatusUnderRepair, Condition: models.ConditionPoor})
		store.addEquipment(models.Equipment{ID: "c", Name: "Cam", Type: "video", Serial: strPtr("CAM003"), Status: models.StatusCheckedOut})
		store.addEquipment(models.Equipment{ID: "d", Name: "Cam", Type: "video", Serial: strPtr("CAM004"), Status: models.StatusRetired})
		return newTestRegistry(store, cache.Nop{}), store
	}

	t.Run("start repair only moves available units", func(t *testing.T) {
		reg, store := seed()
		n, err := reg.BulkStartRepair(ctx, []string{"a", "b", "c", "d", "missing"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1 changed, got %d", n)
		}
		if got := store.equipmentByID("a").Status; got != models.StatusUnderRepair {
			t.Fatalf("expected a under_repair, got %s", got)
		}
	})

	t.Run("start repair on unit already in repair changes nothing", func(t *testing.T) {
		reg, _ := seed()
		n, err := reg.BulkStartRepair(ctx, []string{"b"})
		if err != nil || n != 0 {
			t.Fatalf("expected 0 changed without error, got %d, %v", n, err)
		}
	})

	t.Run("complete repair sets condition", func(t *testing.T) {
		reg, store := seed()
		n, err := reg.BulkCompleteRepair(ctx, []string{"a", "b"}, models.ConditionExcellent)
		if err != nil || n != 1 {
			t.Fatalf("expected 1 changed without error, got %d, %v", n, err)
		}
		b := store.equipmentByID("b")
		if b.Status != models.StatusAvailable || b.Condition != models.ConditionExcellent {
			t.Fatalf("expected b available/excellent, got %s/%s", b.Status, b.Condition)
		}
	})

	t.Run("complete repair validates condition first", func(t *testing.T) {
		reg, store := seed()
		if _, err := reg.BulkCompleteRepair(ctx, []string{"b"}, "mint"); !errors.Is(err, models.ErrInvalidCondition) {
			t.Fatalf("expected ErrInvalidCondition, got %v", err)
		}
		if got := store.equipmentByID("b").Status; got != models.StatusUnderRepair {
			t.Fatalf("expected b unchanged, got %s", got)
		}
	})

	t.Run("retire moves every listed unit", func(t *testing.T) {
		reg, store := seed()
		n, err := reg.BulkRetire(ctx, []string{"a", "b", "c"})
		if err != nil || n != 3 {
			t.Fatalf("expected 3 changed without error, got %d, %v", n, err)
		}
		if got := store.equipmentByID("c").Status; got != models.StatusRetired {
			t.Fatalf("expected c retired, got %s", got)
		}
	})

	t.Run("empty id list", func(t *testing.T) {
		reg, _ := seed()
		if _, err := reg.BulkRetire(ctx, nil); !errors.Is(err, models.ErrEmptyIDs) {
			t.Fatalf("expected ErrEmptyIDs, got %v", err)
		}
	})

	setStatus := []struct {
		name string
		id   string
		to   models.EquipmentStatus
		want error
	}{
		{"available to repair", "a", models.StatusUnderRepair, nil},
		{"repair to available", "b", models.StatusAvailable, nil},
		{"invalid status", "a", "lost", models.ErrInvalidStatus},
		{"missing unit", "zzz", models.StatusAvailable, models.ErrEquipmentNotFound},
		{"enter checked out", "a", models.StatusCheckedOut, models.ErrEquipmentInUse},
		{"leave checked out", "c", models.StatusAvailable, models.ErrEquipmentInUse},
		{"leave retired", "d", models.StatusAvailable, models.ErrEquipmentRetired},
	}
	for _, tc := range setStatus {
		tc := tc
		t.Run("set status "+tc.name, func(t *testing.T) {
			reg, store := seed()
			err := reg.SetStatus(ctx, tc.id, tc.to)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.want == nil && store.equipmentByID(tc.id).Status != tc.to {
				t.Fatalf("expected status %s", tc.to)
			}
		})
	}
}

func TestRegistry_UpdateFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	seed := func() (*Registry, *fakeStore) {
		store := newFakeStore()
		store.addEquipment(models.Equipment{ID: "a", Name: "Cam", Type: "video", Serial: strPtr("CAM001"), Status: models.StatusAvailable})
		store.addEquipment(models.Equipment{ID: "b", Name: "Cam", Type: "video", Serial: strPtr("CAM002"), Status: models.StatusAvailable})
		return newTestRegistry(store, cache.Nop{}), store
	}
	fields := func(serial string) models.EquipmentFields {
		return models.EquipmentFields{
			Name:           "Camera",
			Type:           "video",
			Serial:         &serial,
			Condition:      models.ConditionFair,
			Status:         models.StatusUnderRepair,
			Location:       "Room 2",
			StockThreshold: 4,
		}
	}

	t.Run("replaces every field", func(t *testing.T) {
		reg, _ := seed()
		got, err := reg.UpdateFields(ctx, "a", fields("CAM009"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Name != "Camera" || got.SerialValue() != "CAM009" || got.Condition != models.ConditionFair ||
			got.Status != models.StatusUnderRepair || got.Location != "Room 2" || got.StockThreshold != 4 {
			t.Fatalf("unexpected unit %+v", got)
		}
	})

	t.Run("duplicate serial", func(t *testing.T) {
		reg, store := seed()
		if _, err := reg.UpdateFields(ctx, "a", fields("CAM002")); !errors.Is(err, models.ErrDuplicateSerial) {
			t.Fatalf("expected ErrDuplicateSerial, got %v", err)
		}
		if store.equipmentByID("a").Name != "Cam" {
			t.Fatalf("expected unit unchanged")
		}
	})

	t.Run("keeping own serial is fine", func(t *testing.T) {
		reg, _ := seed()
		if _, err := reg.UpdateFields(ctx, "a", fields("CAM001")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		reg, _ := seed()
		if _, err := reg.UpdateFields(ctx, "zzz", fields("CAM009")); !errors.Is(err, models.ErrEquipmentNotFound) {
			t.Fatalf("expected ErrEquipmentNotFound, got %v", err)
		}
	})

	t.Run("invalid condition", func(t *testing.T) {
		reg, _ := seed()
		f := fields("CAM009")
		f.Condition = "shiny"
		if _, err := reg.UpdateFields(ctx, "a", f); !errors.Is(err, models.ErrInvalidCondition) {
			t.Fatalf("expected ErrInvalidCondition, got %v", err)
		}
	})
}

func TestRegistry_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newFakeStore()
	store.addEquipment(models.Equipment{ID: "free", Name: "Cam", Type: "video", Status: models.StatusAvailable})
	store.addEquipment(models.Equipment{ID: "wanted", Name: "Cam", Type: "video", Status: models.StatusAvailable})
	store.requests["r1"] = models.Request{ID: "r1", EquipmentID: "wanted", Status: models.RequestPending}
	reg := newTestRegistry(store, cache.Nop{})

	if err := reg.Delete(ctx, "missing"); !errors.Is(err, models.ErrEquipmentNotFound) {
		t.Fatalf("expected ErrEquipmentNotFound, got %v", err)
	}
	err := reg.Delete(ctx, "wanted")
	if !errors.Is(err, models.ErrEquipmentInUse) || models.KindOf(err) != models.KindConflict {
		t.Fatalf("expected conflict ErrEquipmentInUse, got %v", err)
	}
	if err := reg.Delete(ctx, "free"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := store.equipment["free"]; ok {
		t.Fatalf("expected unit deleted")
	}
}

func TestRegistry_ListIsCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newFakeStore()
	store.addEquipment(models.Equipment{ID: "a", Name: "Cam", Type: "video", Serial: strPtr("CAM001"), Status: models.StatusAvailable})
	reg := newTestRegistry(store, cache.New())

	first, err := reg.List(ctx, models.EquipmentFilter{Type: "video"})
	if err != nil || len(first) != 1 {
		t.Fatalf("expected 1 unit, got %d, %v", len(first), err)
	}

	store.addEquipment(models.Equipment{ID: "b", Name: "Cam", Type: "video", Serial: strPtr("CAM002"), Status: models.StatusAvailable})
	cached, _ := reg.List(ctx, models.EquipmentFilter{Type: "video"})
	if len(cached) != 1 {
		t.Fatalf("expected cached listing with 1 unit, got %d", len(cached))
	}

	if _, err := reg.BulkStartRepair(ctx, []string{"a"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	fresh, _ := reg.List(ctx, models.EquipmentFilter{Type: "video"})
	if len(fresh) != 2 {
		t.Fatalf("expected listing refreshed after mutation, got %d units", len(fresh))
	}
}

func TestRegistry_MutationsEvictDashboardStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mutations := map[string]func(*Registry) error{
		"create batch": func(r *Registry) error {
			_, err := r.CreateBatch(ctx, CreateBatchInput{Name: "Cam", Type: "video", BaseSerial: "NEW"})
			return err
		},
		"update fields": func(r *Registry) error {
			_, err := r.UpdateFields(ctx, "a", models.EquipmentFields{Name: "Cam", Type: "video", Condition: models.ConditionGood, Status: models.StatusAvailable})
			return err
		},
		"set status":      func(r *Registry) error { return r.SetStatus(ctx, "a", models.StatusUnderRepair) },
		"start repair":    func(r *Registry) error { _, err := r.BulkStartRepair(ctx, []string{"a"}); return err },
		"complete repair": func(r *Registry) error { _, err := r.BulkCompleteRepair(ctx, []string{"a"}, models.ConditionGood); return err },
		"retire":          func(r *Registry) error { _, err := r.BulkRetire(ctx, []string{"a"}); return err },
		"delete":          func(r *Registry) error { return r.Delete(ctx, "a") },
	}
	for name, mutate := range mutations {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			store := newFakeStore()
			store.addEquipment(models.Equipment{ID: "a", Name: "Cam", Type: "video", Serial: strPtr("CAM001"), Status: models.StatusAvailable})
			c := cache.New()
			reg := newTestRegistry(store, c)

			c.Set(ctx, cache.KeyDashboardStats, models.DashboardStats{TotalEquipment: 99}, time.Minute)
			if err := mutate(reg); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			var stats models.DashboardStats
			if c.Get(ctx, cache.KeyDashboardStats, &stats) {
				t.Fatalf("expected dashboard_stats evicted")
			}
		})
	}
}
