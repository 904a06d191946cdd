package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"parking-service/internal/domain/parking"
	"parking-service/internal/utils"
)

// GateService runs the two end-to-end gate pipelines: camera frame ->
// plate recognition -> registry lookup -> spot transition -> barrier.
// Every internal fault is converted to a GateResult; nothing panics or
// escapes across this boundary. Each attempt, successful or not, is
// recorded as a gate event.
//
// When the spot transition succeeds but the barrier then fails to open,
// the session is NOT rolled back: the outcome reports failure and the
// recorded event flags the mismatch for manual reconciliation.
type GateService struct {
	camera     FrameSourceFactory
	recognizer Recognizer
	barrier    BarrierController
	registry   VehicleRegistry
	spots      *SpotService
	events     GateEventStore

	now func() time.Time
	log zerolog.Logger
}

func NewGateService(
	camera FrameSourceFactory,
	recognizer Recognizer,
	barrier BarrierController,
	registry VehicleRegistry,
	spots *SpotService,
	events GateEventStore,
	log zerolog.Logger,
) *GateService {
	return &GateService{
		camera:     camera,
		recognizer: recognizer,
		barrier:    barrier,
		registry:   registry,
		spots:      spots,
		events:     events,
		now:        time.Now,
		log:        log,
	}
}

// GateResult is the two-part outcome every gate operation returns.
type GateResult struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	Plate      string  `json:"plate,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Spot       string  `json:"spot,omitempty"`
}

// ProcessVehicleEntry admits a vehicle through the entry gate.
func (g *GateService) ProcessVehicleEntry(ctx context.Context) GateResult {
	cam := g.camera()
	defer cam.Release()

	res, vehicle, result, ok := g.identifyVehicle(ctx, cam, parking.GateEntry)
	if !ok {
		return result
	}

	spot, _, err := g.spots.OccupyForVehicle(ctx, vehicle)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoAvailableSpot):
			return g.finish(ctx, parking.GateEntry, res, "", false, "no available spot")
		case errors.Is(err, ErrAlreadyParked):
			return g.finish(ctx, parking.GateEntry, res, "", false,
				fmt.Sprintf("vehicle %s already has an open session", vehicle.Plate))
		default:
			g.log.Error().Err(err).Str("plate", vehicle.Plate).Msg("entry: spot allocation failed")
			return g.finish(ctx, parking.GateEntry, res, "", false, "could not allocate a spot")
		}
	}

	if err := g.barrier.Open(ctx); err != nil {
		// Occupancy stands; see the type comment for the chosen
		// no-rollback semantics.
		g.log.Error().Err(err).
			Str("plate", vehicle.Plate).
			Str("spot", spot.Label).
			Msg("entry: spot occupied but barrier failed to open")
		return g.finish(ctx, parking.GateEntry, res, spot.Label, false, "failed to open barrier")
	}

	return g.finish(ctx, parking.GateEntry, res, spot.Label, true,
		fmt.Sprintf("vehicle %s entered, assigned spot %s", vehicle.Plate, spot.Label))
}

// ProcessVehicleExit releases a vehicle through the exit gate.
func (g *GateService) ProcessVehicleExit(ctx context.Context) GateResult {
	cam := g.camera()
	defer cam.Release()

	res, vehicle, result, ok := g.identifyVehicle(ctx, cam, parking.GateExit)
	if !ok {
		return result
	}

	spot, _, err := g.spots.VacateForVehicle(ctx, vehicle)
	if err != nil {
		if errors.Is(err, ErrNoOpenSession) {
			return g.finish(ctx, parking.GateExit, res, "", false,
				fmt.Sprintf("no open parking session for vehicle %s", vehicle.Plate))
		}
		g.log.Error().Err(err).Str("plate", vehicle.Plate).Msg("exit: vacate failed")
		return g.finish(ctx, parking.GateExit, res, "", false, "could not close parking session")
	}

	if err := g.barrier.Open(ctx); err != nil {
		g.log.Error().Err(err).
			Str("plate", vehicle.Plate).
			Str("spot", spot.Label).
			Msg("exit: session closed but barrier failed to open")
		return g.finish(ctx, parking.GateExit, res, spot.Label, false, "failed to open barrier")
	}

	return g.finish(ctx, parking.GateExit, res, spot.Label, true,
		fmt.Sprintf("vehicle %s exited, spot %s released", vehicle.Plate, spot.Label))
}

// identifyVehicle runs the shared front half of both pipelines:
// connect, grab one frame, recognize, look the plate up. ok=false means
// the returned GateResult is final.
func (g *GateService) identifyVehicle(ctx context.Context, cam FrameSource, gate string) (parking.RecognitionResult, *parking.Vehicle, GateResult, bool) {
	var res parking.RecognitionResult

	if !cam.Connect() {
		return res, nil, g.finish(ctx, gate, res, "", false, "failed to connect to camera"), false
	}

	frame, ok := cam.Frame()
	if !ok {
		return res, nil, g.finish(ctx, gate, res, "", false, "failed to read frame from camera"), false
	}

	res, err := g.recognizer.Recognize(ctx, frame)
	if err != nil {
		g.log.Error().Err(err).Str("gate", gate).Msg("recognition failed")
		return res, nil, g.finish(ctx, gate, res, "", false, "could not read plate"), false
	}
	if !res.Found() {
		return res, nil, g.finish(ctx, gate, res, "", false, "could not read plate"), false
	}

	g.log.Info().
		Str("gate", gate).
		Str("plate", res.Plate).
		Float64("confidence", res.Confidence).
		Msg("plate recognized")

	plate := utils.NormalizePlate(res.Plate)
	vehicle, err := g.registry.FindVehicleByPlate(ctx, plate)
	if err != nil {
		g.log.Error().Err(err).Str("plate", plate).Msg("vehicle lookup failed")
		return res, nil, g.finish(ctx, gate, res, "", false, "vehicle lookup failed"), false
	}
	if vehicle == nil {
		return res, nil, g.finish(ctx, gate, res, "", false,
			fmt.Sprintf("vehicle %s is not registered", plate)), false
	}

	return res, vehicle, GateResult{}, true
}

// finish records the audit event and builds the outcome. A failed
// event write is logged, never surfaced to the driver.
func (g *GateService) finish(ctx context.Context, gate string, res parking.RecognitionResult, spot string, success bool, message string) GateResult {
	event := parking.GateEvent{
		Gate:       gate,
		Plate:      res.Plate,
		Confidence: res.Confidence,
		Success:    success,
		Message:    message,
		RawPayload: res.RawPayload,
		EventTime:  g.now(),
	}
	if err := g.events.CreateGateEvent(ctx, &event); err != nil {
		g.log.Error().Err(err).Str("gate", gate).Msg("failed to record gate event")
	}

	return GateResult{
		Success:    success,
		Message:    message,
		Plate:      res.Plate,
		Confidence: res.Confidence,
		Spot:       spot,
	}
}
