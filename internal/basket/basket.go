// Package basket keeps the session-scoped list of products a visitor picked.
package basket

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/pkg/session"
)

// Session keys owned by the basket.
const (
	KeyProducts      = "products"
	KeyProductsCount = "products_count"
)

// Line is a product with the number of times it appears in the basket.
type Line struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// Store is a multiset of product ids kept in the visitor's session. Order of
// insertion is preserved and each Add appends one occurrence.
type Store struct {
	kv session.KV
}

// New binds a basket to kv.
func New(kv session.KV) *Store {
	return &Store{kv: kv}
}

// IDs returns every occurrence in insertion order. Entries that are not valid
// ids are skipped.
func (b *Store) IDs() ([]uuid.UUID, error) {
	var raw []string
	if _, err := b.kv.Get(KeyProducts, &raw); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		id, err := uuid.Parse(v)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (b *Store) write(ids []uuid.UUID) error {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	if err := b.kv.Set(KeyProducts, raw); err != nil {
		return err
	}
	return b.kv.Set(KeyProductsCount, len(raw))
}

// Add appends one occurrence of productID.
func (b *Store) Add(productID uuid.UUID) error {
	ids, err := b.IDs()
	if err != nil {
		return err
	}
	return b.write(append(ids, productID))
}

// Remove drops the first occurrence of productID. Removing a product that is
// not in the basket is a no-op.
func (b *Store) Remove(productID uuid.UUID) error {
	ids, err := b.IDs()
	if err != nil {
		return err
	}
	for i, id := range ids {
		if id == productID {
			return b.write(append(ids[:i], ids[i+1:]...))
		}
	}
	return nil
}

// Lines groups the basket by product in first-appearance order.
func (b *Store) Lines() ([]Line, error) {
	ids, err := b.IDs()
	if err != nil {
		return nil, err
	}
	index := map[uuid.UUID]int{}
	lines := []Line{}
	for _, id := range ids {
		if i, ok := index[id]; ok {
			lines[i].Quantity++
			continue
		}
		index[id] = len(lines)
		lines = append(lines, Line{ProductID: id, Quantity: 1})
	}
	return lines, nil
}

// Totals maps each product to its occurrence count.
func (b *Store) Totals() (map[uuid.UUID]int, error) {
	lines, err := b.Lines()
	if err != nil {
		return nil, err
	}
	totals := make(map[uuid.UUID]int, len(lines))
	for _, l := range lines {
		totals[l.ProductID] = l.Quantity
	}
	return totals, nil
}

// Count is the number of occurrences, duplicates included.
func (b *Store) Count() (int, error) {
	ids, err := b.IDs()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (b *Store) IsEmpty() (bool, error) {
	n, err := b.Count()
	return n == 0, err
}

// Clear removes the basket contents and the cached count.
func (b *Store) Clear() {
	b.kv.Delete(KeyProducts)
	b.kv.Delete(KeyProductsCount)
}
