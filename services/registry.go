package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"Gin_postgres_redis_equipment_tool/cache"
	"Gin_postgres_redis_equipment_tool/clock"
	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/serial"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const maxBatchQuantity = 500

// Registry owns equipment units and their status transitions.
type Registry struct {
	store Store
	cache Cache
	clock clock.Clock
	codes CodeGenerator
	ttl   time.Duration
}

type RegistryOption func(*Registry)

func WithCodeGenerator(g CodeGenerator) RegistryOption {
	return func(r *Registry) { r.codes = g }
}

// WithListTTL overrides how long equipment listings stay cached.
func WithListTTL(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.ttl = d
		}
	}
}

func NewRegistry(store Store, c Cache, clk clock.Clock, opts ...RegistryOption) *Registry {
	r := &Registry{store: store, cache: c, clock: clk, codes: QRCode, ttl: defaultViewTTL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type CreateBatchInput struct {
	Name             string
	Type             string
	BaseSerial       string
	Condition        models.Condition
	Status           models.EquipmentStatus
	Location         string
	RequiresApproval bool
	Quantity         int
	StockThreshold   *int
}

// CreateBatch creates Quantity independent units with serials
// BaseSerial+001, BaseSerial+002, ... in one transaction. A duplicate
// serial anywhere in the batch leaves nothing behind.
func (r *Registry) CreateBatch(ctx context.Context, in CreateBatchInput) (units []models.Equipment, err error) {
	ctx, span := tracer.Start(ctx, "Registry.CreateBatch")
	defer func() { endSpan(span, err) }()

	in.Name = strings.TrimSpace(in.Name)
	in.Type = strings.TrimSpace(in.Type)
	if in.Name == "" || in.Type == "" {
		return nil, models.ErrNameRequired
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 1 || in.Quantity > maxBatchQuantity {
		return nil, models.ErrInvalidQuantity
	}
	if in.Condition == "" {
		in.Condition = models.ConditionGood
	}
	if !in.Condition.Valid() {
		return nil, models.ErrInvalidCondition
	}
	if in.Status == "" {
		in.Status = models.StatusAvailable
	}
	if !in.Status.Valid() {
		return nil, models.ErrInvalidStatus
	}
	if in.Status == models.StatusCheckedOut {
		return nil, models.ErrEquipmentInUse
	}
	threshold := models.DefaultStockThreshold
	if in.StockThreshold != nil {
		if *in.StockThreshold < 0 {
			return nil, models.ErrInvalidThreshold
		}
		threshold = *in.StockThreshold
	}

	now := r.clock.Now()
	base := strings.TrimSpace(in.BaseSerial)
	if base == "" {
		base = fmt.Sprintf("EQ%06d", now.UnixMilli()%1_000_000)
	}
	span.SetAttributes(attribute.String("equipment.base_serial", base), attribute.Int("equipment.quantity", in.Quantity))

	units = make([]models.Equipment, 0, in.Quantity)
	for i := 1; i <= in.Quantity; i++ {
		s := serial.Unit(base, i)
		e := models.Equipment{
			ID:               uuid.NewString(),
			Name:             in.Name,
			Type:             in.Type,
			Serial:           &s,
			Condition:        in.Condition,
			Status:           in.Status,
			Location:         in.Location,
			StockThreshold:   threshold,
			RequiresApproval: in.RequiresApproval,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if code, err := r.codes(s); err != nil {
			log.Printf("registry: qr code for %s: %v", s, err)
		} else {
			e.QRCode = code
		}
		units = append(units, e)
	}

	err = r.store.WithTx(ctx, func(ctx context.Context) error {
		for i := range units {
			exists, err := r.store.SerialExists(ctx, *units[i].Serial)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%s: %w", *units[i].Serial, models.ErrDuplicateSerial)
			}
			if err := r.store.CreateEquipment(ctx, &units[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.cache.InvalidateAggregates(ctx)
	return units, nil
}

func (r *Registry) Get(ctx context.Context, id string) (*models.Equipment, error) {
	return r.store.FindEquipmentByID(ctx, id)
}

// List returns equipment matching f, served from the listing cache when
// possible.
func (r *Registry) List(ctx context.Context, f models.EquipmentFilter) ([]models.Equipment, error) {
	key := listKey(f)
	items := []models.Equipment{}
	if r.cache.Get(ctx, key, &items) {
		return items, nil
	}
	found, err := r.store.ListEquipment(ctx, f)
	if err != nil {
		return nil, err
	}
	items = append(items, found...)
	r.cache.Set(ctx, key, items, r.ttl)
	return items, nil
}

func listKey(f models.EquipmentFilter) string {
	v := url.Values{}
	v.Set("status", string(f.Status))
	v.Set("type", f.Type)
	v.Set("q", strings.TrimSpace(f.Q))
	return cache.PrefixEquipmentList + v.Encode()
}

// UpdateFields replaces every mutable field of a unit. Status changes follow
// the same rules as SetStatus.
func (r *Registry) UpdateFields(ctx context.Context, id string, f models.EquipmentFields) (*models.Equipment, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Type = strings.TrimSpace(f.Type)
	if f.Name == "" || f.Type == "" {
		return nil, models.ErrNameRequired
	}
	if !f.Condition.Valid() {
		return nil, models.ErrInvalidCondition
	}
	if !f.Status.Valid() {
		return nil, models.ErrInvalidStatus
	}
	if f.StockThreshold < 0 {
		return nil, models.ErrInvalidThreshold
	}
	if f.Serial != nil {
		s := strings.TrimSpace(*f.Serial)
		if s == "" {
			f.Serial = nil
		} else {
			f.Serial = &s
		}
	}

	var out *models.Equipment
	err := r.store.WithTx(ctx, func(ctx context.Context) error {
		cur, err := r.store.FindEquipmentByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkManualTransition(cur.Status, f.Status); err != nil {
			return err
		}
		if f.Serial != nil && cur.SerialValue() != *f.Serial {
			exists, err := r.store.SerialExists(ctx, *f.Serial)
			if err != nil {
				return err
			}
			if exists {
				return models.ErrDuplicateSerial
			}
		}
		n, err := r.store.ReplaceEquipmentFields(ctx, id, cur.Status, f)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrEquipmentUnavailable
		}
		out, err = r.store.FindEquipmentByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.cache.InvalidateAggregates(ctx)
	return out, nil
}

// SetStatus moves one unit to status. checked_out is entered and left only
// through the request workflow, and retired is final.
func (r *Registry) SetStatus(ctx context.Context, id string, status models.EquipmentStatus) error {
	if !status.Valid() {
		return models.ErrInvalidStatus
	}
	cur, err := r.store.FindEquipmentByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkManualTransition(cur.Status, status); err != nil {
		return err
	}
	n, err := r.store.UpdateEquipmentStatus(ctx, []string{id}, []models.EquipmentStatus{cur.Status}, status, nil)
	if err != nil {
		return err
	}
	if n == 0 {
		// Status moved under us between the read and the conditional write.
		return models.ErrEquipmentUnavailable
	}
	r.cache.InvalidateAggregates(ctx)
	return nil
}

func checkManualTransition(from, to models.EquipmentStatus) error {
	if from == to {
		return nil
	}
	if from == models.StatusRetired {
		return models.ErrEquipmentRetired
	}
	if from == models.StatusCheckedOut || to == models.StatusCheckedOut {
		return models.ErrEquipmentInUse
	}
	return nil
}

// BulkStartRepair moves available units to under_repair and returns how many
// moved. Units in any other status are skipped.
func (r *Registry) BulkStartRepair(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, models.ErrEmptyIDs
	}
	n, err := r.store.UpdateEquipmentStatus(ctx, ids, []models.EquipmentStatus{models.StatusAvailable}, models.StatusUnderRepair, nil)
	if err != nil {
		return 0, err
	}
	r.cache.InvalidateAggregates(ctx)
	return n, nil
}

// BulkCompleteRepair moves under_repair units back to available with the
// given condition.
func (r *Registry) BulkCompleteRepair(ctx context.Context, ids []string, cond models.Condition) (int64, error) {
	if !cond.Valid() {
		return 0, models.ErrInvalidCondition
	}
	if len(ids) == 0 {
		return 0, models.ErrEmptyIDs
	}
	n, err := r.store.UpdateEquipmentStatus(ctx, ids, []models.EquipmentStatus{models.StatusUnderRepair}, models.StatusAvailable, &cond)
	if err != nil {
		return 0, err
	}
	r.cache.InvalidateAggregates(ctx)
	return n, nil
}

// BulkRetire retires every listed unit whatever its status.
func (r *Registry) BulkRetire(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, models.ErrEmptyIDs
	}
	n, err := r.store.UpdateEquipmentStatus(ctx, ids, nil, models.StatusRetired, nil)
	if err != nil {
		return 0, err
	}
	r.cache.InvalidateAggregates(ctx)
	return n, nil
}

// Delete hard-deletes a unit that no pending or approved request references.
func (r *Registry) Delete(ctx context.Context, id string) error {
	err := r.store.WithTx(ctx, func(ctx context.Context) error {
		open, err := r.store.CountOpenRequestsForEquipment(ctx, id)
		if err != nil {
			return err
		}
		if open > 0 {
			return models.ErrEquipmentInUse
		}
		n, err := r.store.DeleteEquipment(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrEquipmentNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.cache.InvalidateAggregates(ctx)
	return nil
}
