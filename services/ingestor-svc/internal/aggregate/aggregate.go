// Package aggregate - накопитель дельт кликов по коротким кодам.
package aggregate

// ClickAggregates - агрегированные дельты, готовые к буферизации.
// Принадлежит единственной главной задаче consumer'а, не шарится.
type ClickAggregates struct {
	byShortCode map[string]int64
}

// New создаёт пустой агрегат
func New() *ClickAggregates {
	return &ClickAggregates{byShortCode: make(map[string]int64)}
}

// Add добавляет дельту к коду. Сложение аддитивно: повторная доставка
// события с явной дельтой просто суммируется.
func (a *ClickAggregates) Add(shortCode string, delta int64) {
	a.byShortCode[shortCode] += delta
}

// Len возвращает количество различных кодов
func (a *ClickAggregates) Len() int {
	return len(a.byShortCode)
}

// Total возвращает сумму всех дельт
func (a *ClickAggregates) Total() int64 {
	var total int64
	for _, d := range a.byShortCode {
		total += d
	}
	return total
}

// IsEmpty проверяет, пуст ли агрегат
func (a *ClickAggregates) IsEmpty() bool {
	return len(a.byShortCode) == 0
}

// Drain возвращает накопленные дельты и очищает агрегат
func (a *ClickAggregates) Drain() map[string]int64 {
	out := a.byShortCode
	a.byShortCode = make(map[string]int64)
	return out
}

// Snapshot возвращает копию накопленных дельт без очистки
func (a *ClickAggregates) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(a.byShortCode))
	for code, delta := range a.byShortCode {
		out[code] = delta
	}
	return out
}
