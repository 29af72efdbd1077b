package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

type BoardingPoint struct {
	ID   int    `json:"trip_point_id"`
	Name string `json:"location_name"`
	Time string `json:"location_time"`
	Date string `json:"location_date"`
}

type SeatClassInfo struct {
	Class     string          `json:"type"`
	Fare      decimal.Decimal `json:"fare"`
	VATAmount decimal.Decimal `json:"vat_amount"`
}

// Trip is an immutable snapshot of one train from trip discovery.
type Trip struct {
	TripID         string          `json:"trip_id"`
	RouteID        string          `json:"route_id"`
	TrainName      string          `json:"train_name"`
	FromCity       string          `json:"from_city"`
	ToCity         string          `json:"to_city"`
	DepartureTime  string          `json:"departure_time"`
	ArrivalTime    string          `json:"arrival_time"`
	SeatClasses    []SeatClassInfo `json:"seat_classes"`
	BoardingPoints []BoardingPoint `json:"boarding_points"`
}

// HasClass reports whether the trip offers the given seat class.
func (t Trip) HasClass(class string) bool {
	for _, sc := range t.SeatClasses {
		if sc.Class == class {
			return true
		}
	}
	return false
}

// FindBoardingPoint picks the boarding point whose name starts with the
// origin city, falling back to the first point when none matches.
func (t Trip) FindBoardingPoint(fromCity string) (BoardingPoint, bool) {
	if len(t.BoardingPoints) == 0 {
		return BoardingPoint{}, false
	}
	for _, bp := range t.BoardingPoints {
		if strings.HasPrefix(strings.ToLower(bp.Name), strings.ToLower(fromCity)) {
			return bp, true
		}
	}
	return t.BoardingPoints[0], true
}
