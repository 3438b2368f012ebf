package services

import (
	"context"
	"sort"
	"time"

	"Gin_postgres_redis_equipment_tool/cache"
	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/serial"
)

type GroupUnit struct {
	ID        string                 `json:"id"`
	Serial    string                 `json:"serial,omitempty"`
	Status    models.EquipmentStatus `json:"status"`
	Condition models.Condition       `json:"condition"`
}

// GroupStats aggregates the units sharing a group key, name and type.
type GroupStats struct {
	GroupKey         string      `json:"groupKey"`
	Name             string      `json:"name"`
	Type             string      `json:"type"`
	TotalCount       int         `json:"totalCount"`
	AvailableCount   int         `json:"availableCount"`
	CheckedOutCount  int         `json:"checkedOutCount"`
	UnderRepairCount int         `json:"underRepairCount"`
	RetiredCount     int         `json:"retiredCount"`
	StockThreshold   int         `json:"stockThreshold"`
	Units            []GroupUnit `json:"units"`
}

func (g GroupStats) LowStock() bool { return g.AvailableCount <= g.StockThreshold }

type groupID struct{ key, name, typ string }

// BuildGroups aggregates units by (GroupKey(serial), name, type). A unit
// without a serial is its own group keyed by its id. With includeRetired
// false, retired units are left out entirely.
func BuildGroups(units []models.Equipment, includeRetired bool) []GroupStats {
	idx := make(map[groupID]int)
	out := []GroupStats{}
	for _, u := range units {
		if !includeRetired && u.Status == models.StatusRetired {
			continue
		}
		key := u.ID
		if u.Serial != nil {
			key = serial.GroupKey(*u.Serial)
		}
		id := groupID{key, u.Name, u.Type}
		i, ok := idx[id]
		if !ok {
			i = len(out)
			idx[id] = i
			out = append(out, GroupStats{GroupKey: key, Name: u.Name, Type: u.Type, StockThreshold: u.StockThreshold})
		}
		g := &out[i]
		g.TotalCount++
		switch u.Status {
		case models.StatusAvailable:
			g.AvailableCount++
		case models.StatusCheckedOut:
			g.CheckedOutCount++
		case models.StatusUnderRepair:
			g.UnderRepairCount++
		case models.StatusRetired:
			g.RetiredCount++
		}
		if u.StockThreshold < g.StockThreshold {
			g.StockThreshold = u.StockThreshold
		}
		g.Units = append(g.Units, GroupUnit{ID: u.ID, Serial: u.SerialValue(), Status: u.Status, Condition: u.Condition})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].GroupKey != out[b].GroupKey {
			return out[a].GroupKey < out[b].GroupKey
		}
		if out[a].Name != out[b].Name {
			return out[a].Name < out[b].Name
		}
		return out[a].Type < out[b].Type
	})
	return out
}

type StockMonitor struct {
	store Store
	cache Cache
	ttl   time.Duration
}

func NewStockMonitor(store Store, c Cache, ttl time.Duration) *StockMonitor {
	if ttl <= 0 {
		ttl = defaultViewTTL
	}
	return &StockMonitor{store: store, cache: c, ttl: ttl}
}

// Groups lists every serialized group; retired units count in the totals.
func (m *StockMonitor) Groups(ctx context.Context) ([]GroupStats, error) {
	var groups []GroupStats
	if m.cache.Get(ctx, cache.KeyEquipmentGroups, &groups) {
		return groups, nil
	}
	units, err := m.store.ListSerializedEquipment(ctx)
	if err != nil {
		return nil, err
	}
	groups = BuildGroups(units, true)
	m.cache.Set(ctx, cache.KeyEquipmentGroups, groups, m.ttl)
	return groups, nil
}

// LowStock lists groups at or below their threshold. Retired units are not
// counted and a group with nothing left but retired units is not reported.
func (m *StockMonitor) LowStock(ctx context.Context) ([]GroupStats, error) {
	low := []GroupStats{}
	if m.cache.Get(ctx, cache.KeyLowStock, &low) {
		return low, nil
	}
	units, err := m.store.ListSerializedEquipment(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range BuildGroups(units, false) {
		if g.TotalCount > 0 && g.LowStock() {
			low = append(low, g)
		}
	}
	m.cache.Set(ctx, cache.KeyLowStock, low, m.ttl)
	return low, nil
}

// GroupFor returns live statistics for e's group under the LowStock policy.
// It bypasses the cache because approvals gate on it.
func (m *StockMonitor) GroupFor(ctx context.Context, e *models.Equipment) (GroupStats, error) {
	members := []models.Equipment{*e}
	if e.Serial != nil {
		key := serial.GroupKey(*e.Serial)
		candidates, err := m.store.ListEquipmentBySerialPrefix(ctx, key)
		if err != nil {
			return GroupStats{}, err
		}
		members = members[:0]
		for _, c := range candidates {
			if c.Serial != nil && serial.GroupKey(*c.Serial) == key && c.Name == e.Name && c.Type == e.Type {
				members = append(members, c)
			}
		}
	}
	groups := BuildGroups(members, false)
	if len(groups) == 0 {
		key := e.ID
		if e.Serial != nil {
			key = serial.GroupKey(*e.Serial)
		}
		return GroupStats{GroupKey: key, Name: e.Name, Type: e.Type, StockThreshold: models.DefaultStockThreshold}, nil
	}
	return groups[0], nil
}

// UpdateThreshold sets the stock threshold on every unit of the group and
// returns how many units changed.
func (m *StockMonitor) UpdateThreshold(ctx context.Context, groupKey string, n int) (int64, error) {
	if n < 0 {
		return 0, models.ErrInvalidThreshold
	}
	candidates, err := m.store.ListEquipmentBySerialPrefix(ctx, groupKey)
	if err != nil {
		return 0, err
	}
	var ids []string
	for _, c := range candidates {
		if c.Serial != nil && serial.GroupKey(*c.Serial) == groupKey {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return 0, models.ErrGroupNotFound
	}
	changed, err := m.store.SetStockThreshold(ctx, ids, n)
	if err != nil {
		return 0, err
	}
	m.cache.InvalidateAggregates(ctx)
	return changed, nil
}
