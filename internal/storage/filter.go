package storage

import (
	"sort"
	"time"

	"github.com/yndnr/credgate/internal/core/domain"
	"github.com/yndnr/credgate/internal/core/service"
)

// filterSessions applies filter criteria, sorting, and pagination to a
// candidate set. Returns the page of clones and the total match count.
//
// The memory store keeps its own index-aware implementation; this one
// serves engines that collect candidates by scanning.
func filterSessions(candidates []*domain.Session, filter *service.SessionFilter) ([]*domain.Session, int) {
	var filtered []*domain.Session
	now := time.Now().UnixMilli()

	for _, session := range candidates {
		if filter.UserID != "" && session.UserID != filter.UserID {
			continue
		}
		if filter.Username != "" && session.Username != filter.Username {
			continue
		}
		if filter.DeviceID != "" && session.DeviceID != filter.DeviceID {
			continue
		}
		if filter.CreatedBy != "" && session.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.IPAddress != "" {
			if session.LastAccessIP != filter.IPAddress && session.IPAddress != filter.IPAddress {
				continue
			}
		}
		if filter.Status != "" {
			isExpired := session.ExpiresAt > 0 && session.ExpiresAt < now
			if filter.Status == "active" && isExpired {
				continue
			}
			if filter.Status == "expired" && !isExpired {
				continue
			}
		}
		if filter.CreatedAfter != nil && session.CreatedAt < filter.CreatedAfter.UnixMilli() {
			continue
		}
		if filter.CreatedBefore != nil && session.CreatedAt >= filter.CreatedBefore.UnixMilli() {
			continue
		}
		if filter.ActiveAfter != nil && session.LastActive < filter.ActiveAfter.UnixMilli() {
			continue
		}

		filtered = append(filtered, session)
	}

	total := len(filtered)

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	sortOrder := filter.SortOrder
	if sortOrder == "" {
		sortOrder = "desc"
	}

	sort.Slice(filtered, func(i, j int) bool {
		var less bool
		switch sortBy {
		case "last_active":
			less = filtered[i].LastActive < filtered[j].LastActive
		default: // "created_at"
			less = filtered[i].CreatedAt < filtered[j].CreatedAt
		}

		if sortOrder == "asc" {
			return less
		}
		return !less
	})

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	} else if pageSize > 100 {
		pageSize = 100
	}

	startIdx := (page - 1) * pageSize
	endIdx := startIdx + pageSize

	if startIdx >= len(filtered) {
		return []*domain.Session{}, total
	}
	if endIdx > len(filtered) {
		endIdx = len(filtered)
	}

	results := make([]*domain.Session, 0, endIdx-startIdx)
	for i := startIdx; i < endIdx; i++ {
		results = append(results, filtered[i].Clone())
	}

	return results, total
}
