// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data, with one
// deliberate exception: unlock checks may flip a due unlock record, because
// unlock state is derived from time and persisted lazily on read.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Получает топ-N зачислений по текущему баллу. Сначала пробует кеш
// (Redis sorted set), при промахе читает из хранилища и прогревает кеш.
// ══════════════════════════════════════════════════════════════════════════════

// leaderboardCacheTTL ограничивает устаревание кеша: балл меняется только
// при ревью, поэтому короткий TTL достаточен.
const leaderboardCacheTTL = 30 * time.Second

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// ProgramID - фильтр по программе (пустая строка = все программы).
	ProgramID string

	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int

	// Offset - смещение для пагинации.
	Offset int
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	return nil
}

// LeaderboardEntryDTO - DTO для записи лидерборда.
type LeaderboardEntryDTO struct {
	// Rank - позиция в рейтинге (начиная с 1).
	Rank int `json:"rank"`

	// EnrollmentID - внутренний ID зачисления.
	EnrollmentID string `json:"enrollment_id"`

	// InternID - ID стажёра.
	InternID string `json:"intern_id"`

	// ProgramID - программа зачисления.
	ProgramID string `json:"program_id"`

	// Score - текущий балл (0-100).
	Score float64 `json:"score"`

	// Completed - завершено ли зачисление.
	Completed bool `json:"completed"`
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// Entries - записи лидерборда.
	Entries []LeaderboardEntryDTO `json:"entries"`

	// ProgramID - программа, по которой фильтровали (пустая = все).
	ProgramID string `json:"program_id"`

	// FromCache - обслужен ли запрос из кеша.
	FromCache bool `json:"from_cache"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`

	// HasMore - есть ли ещё записи после текущей страницы.
	HasMore bool `json:"has_more"`
}

// GetLeaderboardHandler обрабатывает запросы на получение лидерборда.
type GetLeaderboardHandler struct {
	enrollmentRepo enrollment.Repository
	cache          enrollment.LeaderboardCache
	clock          shared.Clock
}

// NewGetLeaderboardHandler создаёт новый обработчик запроса лидерборда.
func NewGetLeaderboardHandler(
	enrollmentRepo enrollment.Repository,
	cache enrollment.LeaderboardCache,
	clock shared.Clock,
) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		enrollmentRepo: enrollmentRepo,
		cache:          cache,
		clock:          clock,
	}
}

// Handle выполняет запрос на получение лидерборда.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, err.Error(), err)
	}

	// fetch запрашивает на одну строку больше страницы, чтобы отличить
	// последнюю страницу от неполной.
	fetch := query.Offset + query.Limit + 1

	rows, fromCache := h.load(ctx, query.ProgramID, fetch)

	hasMore := len(rows) > query.Offset+query.Limit
	page := h.paginate(rows, query.Offset, query.Limit)

	dtos := make([]LeaderboardEntryDTO, len(page))
	for i, r := range page {
		dtos[i] = LeaderboardEntryDTO{
			Rank:         query.Offset + i + 1,
			EnrollmentID: r.EnrollmentID,
			InternID:     r.InternID,
			ProgramID:    r.ProgramID,
			Score:        r.Score,
			Completed:    r.Completed,
		}
	}

	return &GetLeaderboardResult{
		Entries:     dtos,
		ProgramID:   query.ProgramID,
		FromCache:   fromCache,
		GeneratedAt: h.clock.Now(),
		HasMore:     hasMore,
	}, nil
}

// load читает топ из кеша, при промахе - из хранилища с прогревом кеша.
// Ошибки кеша не фатальны: лидерборд всегда можно собрать из хранилища.
func (h *GetLeaderboardHandler) load(ctx context.Context, programID string, limit int) ([]enrollment.LeaderboardRow, bool) {
	if h.cache != nil {
		cached, err := h.cache.GetCachedTop(ctx, programID, limit)
		if err == nil && len(cached) > 0 {
			return cached, true
		}
	}

	rows, err := h.enrollmentRepo.TopByRunningScore(ctx, programID, limit)
	if err != nil {
		return nil, false
	}

	if h.cache != nil && len(rows) > 0 {
		_ = h.cache.CacheTop(ctx, programID, rows, leaderboardCacheTTL)
	}

	return rows, false
}

// paginate применяет пагинацию к строкам.
func (h *GetLeaderboardHandler) paginate(rows []enrollment.LeaderboardRow, offset, limit int) []enrollment.LeaderboardRow {
	if offset >= len(rows) {
		return nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}
