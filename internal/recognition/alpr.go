package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// DefaultConfidenceThreshold is the minimum engine-reported confidence
// for a reading to be accepted, bound inclusive.
const DefaultConfidenceThreshold = 80.0

// ALPREngine shells out to the OpenALPR command-line tool per candidate
// crop: the crop is written to a transient file, the tool runs in JSON
// mode for a fixed plate-format region, and only the top result is
// requested.
type ALPREngine struct {
	path      string
	region    string
	threshold float64
	log       zerolog.Logger
}

func NewALPREngine(path, region string, threshold float64, log zerolog.Logger) *ALPREngine {
	if path == "" {
		path = "alpr"
	}
	if region == "" {
		region = "eu"
	}
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &ALPREngine{path: path, region: region, threshold: threshold, log: log}
}

type alprResponse struct {
	Results []alprResult `json:"results"`
}

type alprResult struct {
	Plate      string  `json:"plate"`
	Confidence float64 `json:"confidence"`
}

// Recognize runs the external tool on one crop. An empty plate with a
// nil error means the engine saw nothing acceptable; errors cover
// process and output faults only.
func (e *ALPREngine) Recognize(ctx context.Context, crop gocv.Mat) (string, float64, []byte, error) {
	tmp, err := os.CreateTemp("", "plate-*.jpg")
	if err != nil {
		return "", 0, nil, fmt.Errorf("create temp image: %w", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if ok := gocv.IMWrite(tmp.Name(), crop); !ok {
		return "", 0, nil, fmt.Errorf("write temp image %s", tmp.Name())
	}

	cmd := exec.CommandContext(ctx, e.path,
		"-c", e.region, // plate-format region
		"-n", "1", // top candidate only
		"-j", // JSON output
		tmp.Name(),
	)
	out, err := cmd.Output()
	if err != nil {
		return "", 0, nil, fmt.Errorf("run %s: %w", e.path, err)
	}

	resp, err := parseALPROutput(out)
	if err != nil {
		return "", 0, nil, err
	}

	plate, confidence := acceptTopResult(resp, e.threshold)
	return plate, confidence, out, nil
}

func parseALPROutput(out []byte) (alprResponse, error) {
	var resp alprResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return alprResponse{}, fmt.Errorf("parse alpr output: %w", err)
	}
	return resp, nil
}

// acceptTopResult applies the confidence gate to the engine's top
// candidate. The threshold bound is inclusive.
func acceptTopResult(resp alprResponse, threshold float64) (string, float64) {
	if len(resp.Results) == 0 {
		return "", 0
	}
	top := resp.Results[0]
	if top.Confidence < threshold {
		return "", 0
	}
	return top.Plate, top.Confidence
}
