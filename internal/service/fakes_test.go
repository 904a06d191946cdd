package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"parking-service/internal/domain/parking"
)

// memStore is an in-memory stand-in for the gorm Store. It hands out
// copies so service-side mutations only land via the Save/Create
// methods, mirroring the real persistence boundary. It also records
// which session/spot writes happened outside a Transact call.
type memStore struct {
	nextID   int64
	spots    map[int64]*parking.ParkingSpot
	vehicles map[int64]*parking.Vehicle
	sessions map[int64]*parking.ParkingSession
	payments map[int64]*parking.Payment
	events   []parking.GateEvent

	txDepth    int
	txCount    int
	bareWrites []string
}

func newMemStore() *memStore {
	return &memStore{
		spots:    make(map[int64]*parking.ParkingSpot),
		vehicles: make(map[int64]*parking.Vehicle),
		sessions: make(map[int64]*parking.ParkingSession),
		payments: make(map[int64]*parking.Payment),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// Transact has no rollback; it only tracks that multi-write
// transitions declare a transaction boundary.
func (m *memStore) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txCount++
	m.txDepth++
	defer func() { m.txDepth-- }()
	return fn(ctx)
}

func (m *memStore) trackWrite(name string) {
	if m.txDepth == 0 {
		m.bareWrites = append(m.bareWrites, name)
	}
}

func (m *memStore) CreateSpot(_ context.Context, spot *parking.ParkingSpot) error {
	spot.ID = m.id()
	cp := *spot
	m.spots[spot.ID] = &cp
	return nil
}

func (m *memStore) SaveSpot(_ context.Context, spot *parking.ParkingSpot) error {
	m.trackWrite("save_spot")
	if _, ok := m.spots[spot.ID]; !ok {
		return errors.New("spot not found")
	}
	cp := *spot
	m.spots[spot.ID] = &cp
	return nil
}

func (m *memStore) FindSpotByLabel(_ context.Context, label string) (*parking.ParkingSpot, error) {
	for _, s := range m.spots {
		if s.Label == label {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindSpotByID(_ context.Context, id int64) (*parking.ParkingSpot, error) {
	s, ok := m.spots[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) FirstAvailableSpot(_ context.Context) (*parking.ParkingSpot, error) {
	var available []*parking.ParkingSpot
	for _, s := range m.spots {
		if s.State == parking.SpotAvailable {
			available = append(available, s)
		}
	}
	if len(available) == 0 {
		return nil, nil
	}
	sort.Slice(available, func(i, j int) bool { return available[i].Label < available[j].Label })
	cp := *available[0]
	return &cp, nil
}

func (m *memStore) ListSpots(_ context.Context) ([]parking.ParkingSpot, error) {
	return m.listSpots(func(*parking.ParkingSpot) bool { return true }), nil
}

func (m *memStore) ListSpotsByState(_ context.Context, state parking.SpotState) ([]parking.ParkingSpot, error) {
	return m.listSpots(func(s *parking.ParkingSpot) bool { return s.State == state }), nil
}

func (m *memStore) listSpots(keep func(*parking.ParkingSpot) bool) []parking.ParkingSpot {
	var out []parking.ParkingSpot
	for _, s := range m.spots {
		if keep(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func (m *memStore) CreateVehicle(_ context.Context, vehicle *parking.Vehicle) error {
	vehicle.ID = m.id()
	cp := *vehicle
	m.vehicles[vehicle.ID] = &cp
	return nil
}

func (m *memStore) FindVehicleByPlate(_ context.Context, plate string) (*parking.Vehicle, error) {
	for _, v := range m.vehicles {
		if v.Plate == plate {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListVehicles(_ context.Context, _ string) ([]parking.Vehicle, error) {
	var out []parking.Vehicle
	for _, v := range m.vehicles {
		out = append(out, *v)
	}
	return out, nil
}

func (m *memStore) CreateSession(_ context.Context, session *parking.ParkingSession) error {
	m.trackWrite("create_session")
	session.ID = m.id()
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *memStore) RestampSessionEntry(_ context.Context, sessionID int64, entryTime time.Time) error {
	m.trackWrite("restamp_session")
	s, ok := m.sessions[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	s.EntryTime = entryTime
	return nil
}

func (m *memStore) CloseSession(_ context.Context, sessionID int64, exitTime time.Time) error {
	m.trackWrite("close_session")
	s, ok := m.sessions[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	t := exitTime
	s.ExitTime = &t
	return nil
}

func (m *memStore) FindOpenSessionByVehicle(_ context.Context, vehicleID int64) (*parking.ParkingSession, error) {
	for _, s := range m.sessions {
		if s.VehicleID == vehicleID && s.ExitTime == nil {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindOpenSessionBySpot(_ context.Context, spotID int64) (*parking.ParkingSession, error) {
	for _, s := range m.sessions {
		if s.SpotID == spotID && s.ExitTime == nil {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) HasSessionEntryWithin(_ context.Context, spotID int64, start, end time.Time) (bool, error) {
	for _, s := range m.sessions {
		if s.SpotID != spotID || s.ExitTime != nil {
			continue
		}
		if !s.EntryTime.Before(start) && !s.EntryTime.After(end) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListActiveSessions(_ context.Context) ([]parking.ParkingSession, error) {
	var out []parking.ParkingSession
	for _, s := range m.sessions {
		if s.ExitTime == nil && !s.IsReservation {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) ListReservations(_ context.Context, now time.Time, future bool) ([]parking.ParkingSession, error) {
	var out []parking.ParkingSession
	for _, s := range m.sessions {
		if s.ExitTime != nil || !s.IsReservation || s.ReservationStart == nil {
			continue
		}
		if future && s.ReservationStart.After(now) {
			out = append(out, *s)
		}
		if !future && !s.ReservationStart.After(now) && s.ReservationEnd != nil && !s.ReservationEnd.Before(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) CreatePayment(_ context.Context, payment *parking.Payment) error {
	payment.ID = m.id()
	cp := *payment
	m.payments[payment.ID] = &cp
	return nil
}

func (m *memStore) FindPaymentByID(_ context.Context, id int64) (*parking.Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) SavePayment(_ context.Context, payment *parking.Payment) error {
	if _, ok := m.payments[payment.ID]; !ok {
		return errors.New("payment not found")
	}
	cp := *payment
	m.payments[payment.ID] = &cp
	return nil
}

func (m *memStore) CreateGateEvent(_ context.Context, event *parking.GateEvent) error {
	event.ID = m.id()
	m.events = append(m.events, *event)
	return nil
}

func (m *memStore) FindGateEvents(_ context.Context, _ *string, _, _ *time.Time, _, _ int) ([]parking.GateEvent, error) {
	out := make([]parking.GateEvent, len(m.events))
	copy(out, m.events)
	return out, nil
}

func (m *memStore) DeleteOldGateEvents(_ context.Context, _ int) (int64, error) {
	return 0, nil
}

// Device fakes for the gate pipeline.

type fakeCamera struct {
	connectOK bool
	frame     []byte
	frameOK   bool
	released  int
}

func (f *fakeCamera) Connect() bool         { return f.connectOK }
func (f *fakeCamera) Frame() ([]byte, bool) { return f.frame, f.frameOK }
func (f *fakeCamera) Release()              { f.released++ }

// lifecycleCamera behaves like the real source: once released, its
// connection is gone and cannot be reopened.
type lifecycleCamera struct {
	frame    []byte
	released bool
	reads    int
}

func (c *lifecycleCamera) Connect() bool { return !c.released }

func (c *lifecycleCamera) Frame() ([]byte, bool) {
	if c.released {
		return nil, false
	}
	c.reads++
	return c.frame, true
}

func (c *lifecycleCamera) Release() { c.released = true }

type fakeRecognizer struct {
	res parking.RecognitionResult
	err error
}

func (f *fakeRecognizer) Recognize(context.Context, []byte) (parking.RecognitionResult, error) {
	return f.res, f.err
}

type fakeBarrier struct {
	openErr error
	opens   int
}

func (f *fakeBarrier) Open(context.Context) error  { f.opens++; return f.openErr }
func (f *fakeBarrier) Close(context.Context) error { return nil }
func (f *fakeBarrier) Status(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"state":"closed"}`), nil
}
