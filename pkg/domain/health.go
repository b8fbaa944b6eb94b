package domain

// HealthStatus - статус проверки зависимости сервиса
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Unhealthy HealthStatus = "unhealthy"
)

// ParseHealthStatus разбирает строку, неизвестные значения считаются unhealthy
func ParseHealthStatus(s string) HealthStatus {
	if s == string(Healthy) {
		return Healthy
	}
	return Unhealthy
}

// EdgeHealth - ответ GET /health edge-сервиса
type EdgeHealth struct {
	Status   HealthStatus `json:"status"`
	Database HealthStatus `json:"database"`
	Cache    HealthStatus `json:"cache"`
}

// KeygenHealth - ответ GET /health keygen-сервиса:
// сервис жив, пока жив хотя бы один backend
type KeygenHealth struct {
	Status    HealthStatus `json:"status"`
	Primary   HealthStatus `json:"primary"`
	Secondary HealthStatus `json:"secondary"`
}

// Overall сводит статусы edge: оба должны отвечать
func (h *EdgeHealth) Overall() HealthStatus {
	if h.Database == Healthy && h.Cache == Healthy {
		return Healthy
	}
	return Unhealthy
}

// Overall сводит статусы keygen: достаточно одного живого backend
func (h *KeygenHealth) Overall() HealthStatus {
	if h.Primary == Healthy || h.Secondary == Healthy {
		return Healthy
	}
	return Unhealthy
}
