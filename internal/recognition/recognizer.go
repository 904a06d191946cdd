// Package recognition locates plate-like regions in a camera frame and
// extracts a plate string with a confidence score. Final character
// recognition is delegated to an Engine invoked per candidate region.
package recognition

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"parking-service/internal/domain/parking"
)

// Recognizer reads a license plate from an encoded camera frame. An
// empty result (Found() == false) means no candidate passed; it is not
// an error.
type Recognizer interface {
	Recognize(ctx context.Context, jpeg []byte) (parking.RecognitionResult, error)
}

// Engine performs character recognition on one cropped candidate
// region. Implementations may shell out to an external ALPR tool or
// link a native library; callers must not assume either.
type Engine interface {
	Recognize(ctx context.Context, crop gocv.Mat) (plate string, confidence float64, raw []byte, err error)
}

// Config is injected at construction; there is no process-wide
// recognizer state.
type Config struct {
	MinBoxWidth  int
	MinBoxHeight int
}

func DefaultConfig() Config {
	// Minimum plate box, calibrated to typical plate aspect at the
	// expected camera distance.
	return Config{MinBoxWidth: 100, MinBoxHeight: 30}
}

type PlateRecognizer struct {
	engine Engine
	cfg    Config
	log    zerolog.Logger
}

func NewPlateRecognizer(engine Engine, cfg Config, log zerolog.Logger) *PlateRecognizer {
	if cfg.MinBoxWidth <= 0 || cfg.MinBoxHeight <= 0 {
		cfg = DefaultConfig()
	}
	return &PlateRecognizer{engine: engine, cfg: cfg, log: log}
}

// Recognize runs the detection pipeline: preprocess, edge-detect,
// extract external contours as candidates, filter by minimum box size,
// then ask the engine about each surviving crop. The highest-confidence
// reading wins; ties keep the first-found candidate. Engine faults are
// logged and treated as no-result for that candidate.
func (r *PlateRecognizer) Recognize(ctx context.Context, jpeg []byte) (parking.RecognitionResult, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return parking.RecognitionResult{}, fmt.Errorf("decode frame: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return parking.RecognitionResult{}, fmt.Errorf("decode frame: empty image")
	}

	edges := r.preprocess(img)
	defer edges.Close()

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var best parking.RecognitionResult
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		if rect.Dx() < r.cfg.MinBoxWidth || rect.Dy() < r.cfg.MinBoxHeight {
			continue
		}

		crop := img.Region(rect)
		plate, confidence, raw, err := r.engine.Recognize(ctx, crop)
		crop.Close()
		if err != nil {
			r.log.Warn().Err(err).
				Int("x", rect.Min.X).Int("y", rect.Min.Y).
				Msg("engine failed on candidate, skipping")
			continue
		}

		if plate != "" && confidence > best.Confidence {
			best = parking.RecognitionResult{
				Plate:      plate,
				Confidence: confidence,
				Box: &parking.Box{
					X: rect.Min.X, Y: rect.Min.Y,
					W: rect.Dx(), H: rect.Dy(),
				},
				RawPayload: raw,
			}
		}
	}

	return best, nil
}

// preprocess converts to grayscale, applies local contrast enhancement
// and a light blur, then edge-detects. Returns the edge map.
func (r *PlateRecognizer) preprocess(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	clahe := gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8))
	defer clahe.Close()
	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe.Apply(gray, &enhanced)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(enhanced, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	gocv.Canny(blurred, &edges, 100, 200)
	return edges
}
