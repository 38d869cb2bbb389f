package order

import (
	"context"
	"time"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

// partitionReady splits READY items of station out of every unpaid live order.
// Each order that gives up items yields one archive record stamped with now;
// orders left empty are dropped from the live set.
func partitionReady(live []models.Order, station models.PrepCategory, now time.Time) (remaining, archived []models.Order) {
	remaining = make([]models.Order, 0, len(live))
	for _, o := range live {
		if o.IsPaid {
			remaining = append(remaining, o)
			continue
		}

		var ready, rest []models.OrderItem
		for _, it := range o.Items {
			if it.Category == station && it.Status == models.StatusReady {
				ready = append(ready, it)
			} else {
				rest = append(rest, it)
			}
		}
		if len(ready) == 0 {
			remaining = append(remaining, o)
			continue
		}

		record := o.Clone()
		record.Items = ready
		completedAt := now
		record.CompletedAt = &completedAt
		archived = append(archived, record)

		if len(rest) > 0 {
			o = o.Clone()
			o.Items = rest
			remaining = append(remaining, o)
		}
	}
	return remaining, archived
}

// MoveReadyToArchive migrates the calling station's READY items to the archive
// and returns the number of archive records created. With nothing to move no
// collection is written.
func (s *Service) MoveReadyToArchive(ctx context.Context, actor models.Actor) (int, error) {
	station, ok := actor.Role.Station()
	if !ok {
		return 0, &models.AuthorizationError{Reason: "only kitchen or bar can archive ready items"}
	}

	moved, err := s.archiveReady(ctx, actor.Branch, station)
	if err != nil || moved == 0 {
		return 0, err
	}

	s.metrics.OrdersArchived(ctx, actor.Branch, string(station), moved)
	s.logger.Info("orders_archived", "Ready items moved to archive", logger.RequestID(ctx), map[string]interface{}{
		"station":     string(station),
		"moved_count": moved,
	})
	s.publish(ctx, actor.Branch, models.OrdersMovedEvent(moved))
	return moved, nil
}

func (s *Service) archiveReady(ctx context.Context, branch string, station models.PrepCategory) (int, error) {
	unlock := s.locker.Lock(branch)
	defer unlock()

	live, err := s.load(ctx, branch, storage.Live)
	if err != nil {
		return 0, err
	}
	archive, err := s.load(ctx, branch, storage.Archive)
	if err != nil {
		return 0, err
	}

	remaining, moved := partitionReady(live, station, s.now().UTC())
	if len(moved) == 0 {
		return 0, nil
	}

	if err := s.save(ctx, branch,
		storage.Write{Collection: storage.Live, Orders: remaining},
		storage.Write{Collection: storage.Archive, Orders: append(archive, moved...)},
	); err != nil {
		return 0, err
	}
	return len(moved), nil
}

// ResetDay clears the archive of a branch
func (s *Service) ResetDay(ctx context.Context, branch string) error {
	unlock := s.locker.Lock(branch)
	err := s.save(ctx, branch, storage.Write{Collection: storage.Archive, Orders: []models.Order{}})
	unlock()
	if err != nil {
		return err
	}

	s.logger.Info("day_reset", "Archive cleared for new day", logger.RequestID(ctx), map[string]interface{}{
		"branch": branch,
	})
	s.publish(ctx, branch, models.DayResetEvent())
	return nil
}
