package services

import (
	"log/slog"
	"sort"

	"railbooker/internal/errs"
	"railbooker/models"
)

// SeatService picks seats from a layout snapshot. The policy is fully
// deterministic: the same layout, class and count always yield the same
// sequence, and the returned order is the passenger binding order.
type SeatService struct {
	log *slog.Logger
}

func NewSeatService(log *slog.Logger) *SeatService {
	return &SeatService{log: log}
}

// SelectSeats returns count seats of the requested class:
//
//  1. only seats marked available in the snapshot are considered;
//  2. seats are grouped by their block label (seat id prefix);
//  3. the smallest group holding count seats with consecutive numbers wins,
//     keeping the party together (group-size ties break by block label);
//  4. with no such group, the globally cheapest count seats are taken,
//     price ties breaking by seat id ascending.
func (s *SeatService) SelectSeats(layout models.SeatLayout, class string, count int) ([]models.Seat, error) {
	if count <= 0 {
		return nil, &errs.InsufficientSeatsError{Class: class, Want: count, Have: 0}
	}

	eligible := layout.AvailableInClass(class)
	if len(eligible) < count {
		return nil, &errs.InsufficientSeatsError{Class: class, Want: count, Have: len(eligible)}
	}

	if run := s.bestContiguousRun(eligible, count); run != nil {
		return run, nil
	}

	// No block can seat the party together; take the cheapest seats overall.
	byPrice := append([]models.Seat(nil), eligible...)
	sort.SliceStable(byPrice, func(i, j int) bool {
		if cmp := byPrice[i].Price.Cmp(byPrice[j].Price); cmp != 0 {
			return cmp < 0
		}
		return byPrice[i].ID < byPrice[j].ID
	})
	s.log.Debug("no contiguous block fits the party, using cheapest seats",
		"class", class, "count", count)
	return byPrice[:count], nil
}

func (s *SeatService) bestContiguousRun(eligible []models.Seat, count int) []models.Seat {
	groups := make(map[string][]models.Seat)
	for _, seat := range eligible {
		groups[seat.Block()] = append(groups[seat.Block()], seat)
	}

	blocks := make([]string, 0, len(groups))
	for block := range groups {
		blocks = append(blocks, block)
	}
	sort.Strings(blocks)

	var best []models.Seat
	bestGroupSize := -1
	for _, block := range blocks {
		group := groups[block]
		if len(group) < count {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].Number() != group[j].Number() {
				return group[i].Number() < group[j].Number()
			}
			return group[i].ID < group[j].ID
		})
		run := firstRun(group, count)
		if run == nil {
			continue
		}
		if bestGroupSize == -1 || len(group) < bestGroupSize {
			best = run
			bestGroupSize = len(group)
		}
	}
	return best
}

// firstRun finds the lowest-numbered window of count seats with consecutive
// seat numbers. Seats without a numeric suffix cannot prove adjacency and
// are skipped.
func firstRun(group []models.Seat, count int) []models.Seat {
	for start := 0; start+count <= len(group); start++ {
		if group[start].Number() < 0 {
			continue
		}
		ok := true
		for i := 1; i < count; i++ {
			if group[start+i].Number() != group[start].Number()+i {
				ok = false
				break
			}
		}
		if ok {
			return group[start : start+count]
		}
	}
	return nil
}
