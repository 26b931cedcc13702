package simulation

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Moori-Sense/Backend/internal/tension/application"
	tension "github.com/Moori-Sense/Backend/internal/tension/domain"
	"github.com/Moori-Sense/Backend/internal/weather"
)

// fanOut spreads each physical sensor channel onto two roster lines.
// The deck carries four load cells; the opposite-position lines are
// derived with a fixed attenuation factor.
var fanOut = map[string]struct {
	targets     [2]string
	multipliers [2]float64
}{
	"L0-BREAST": {targets: [2]string{"L0", "L4"}, multipliers: [2]float64{1.0, 0.8}},
	"L1-BREAST": {targets: [2]string{"L1", "L5"}, multipliers: [2]float64{1.0, 0.9}},
	"L2-SPRING": {targets: [2]string{"L2", "L6"}, multipliers: [2]float64{1.0, 0.85}},
	"L3-SPRING": {targets: [2]string{"L3", "L7"}, multipliers: [2]float64{1.0, 0.75}},
}

// channelJitter is the per-channel random variation applied while
// fanning a sensor value out to its target lines.
const channelJitter = 0.03

// replayJitter is the whole-frame variation applied on every replay
// pass so cycling through the capture does not repeat values exactly.
const replayJitter = 0.05

var frameTimestamp = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d{3}`)

// ErrMalformedFrame rejects lines that do not carry a sensor frame.
var ErrMalformedFrame = errors.New("simulation: malformed sensor frame")

// ChannelSample is one fanned-out line value from a frame.
type ChannelSample struct {
	Tension float64
	Length  float64
}

// Frame is one parsed sensor capture line, fanned out to all eight
// roster lines.
type Frame struct {
	RawTimestamp   string
	DistanceToPort *float64
	Lines          map[string]ChannelSample
}

// ParseFrame parses one capture line of the form
//
//	22:59:42.719 -> CSV,DIST,14.5cm,L0-BREAST,T,0.95,LEN,0.000m,SPD,0,OVR,0,BRK,1,...
//
// and fans the four sensor channels out to the eight roster lines.
// rng drives the per-channel jitter; pass a seeded source for
// reproducible output.
func ParseFrame(line string, rng *rand.Rand) (Frame, error) {
	raw := frameTimestamp.FindString(line)
	if raw == "" {
		return Frame{}, fmt.Errorf("%w: no timestamp prefix", ErrMalformedFrame)
	}

	payload := line
	if idx := strings.Index(line, " -> "); idx >= 0 {
		payload = line[idx+4:]
	}
	parts := strings.Split(payload, ",")
	if len(parts) < 3 || parts[0] != "CSV" {
		return Frame{}, fmt.Errorf("%w: missing CSV marker", ErrMalformedFrame)
	}

	frame := Frame{RawTimestamp: raw, Lines: make(map[string]ChannelSample)}
	if parts[1] == "DIST" && strings.HasSuffix(parts[2], "cm") {
		if distance, err := strconv.ParseFloat(strings.TrimSuffix(parts[2], "cm"), 64); err == nil {
			frame.DistanceToPort = &distance
		}
	}

	// Each channel occupies nine comma fields starting at its name:
	// NAME,T,<tension>,LEN,<length>m,SPD,<v>,OVR,<v>
	for i := 3; i+5 < len(parts); i += 9 {
		name := parts[i]
		mapping, known := fanOut[name]
		if !known || parts[i+1] != "T" || parts[i+3] != "LEN" {
			continue
		}
		tensionValue, err := strconv.ParseFloat(parts[i+2], 64)
		if err != nil {
			return Frame{}, fmt.Errorf("%w: bad tension for %s", ErrMalformedFrame, name)
		}
		length, err := strconv.ParseFloat(strings.TrimSuffix(parts[i+4], "m"), 64)
		if err != nil {
			return Frame{}, fmt.Errorf("%w: bad length for %s", ErrMalformedFrame, name)
		}

		for j, target := range mapping.targets {
			variation := 1.0
			if rng != nil {
				variation = 1 + (rng.Float64()*2-1)*channelJitter
			}
			frame.Lines[target] = ChannelSample{
				Tension: tensionValue * mapping.multipliers[j] * variation,
				Length:  length,
			}
		}
	}
	if len(frame.Lines) == 0 {
		return Frame{}, fmt.Errorf("%w: no sensor channels", ErrMalformedFrame)
	}
	return frame, nil
}

// LoadFrames reads a capture file, skipping blank and malformed lines.
func LoadFrames(path string, rng *rand.Rand) ([]Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("simulation: open capture: %w", err)
	}
	defer file.Close()

	var frames []Frame
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		frame, err := ParseFrame(line, rng)
		if err != nil {
			continue
		}
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("simulation: read capture: %w", err)
	}
	if len(frames) == 0 {
		return nil, errors.New("simulation: capture holds no usable frames")
	}
	return frames, nil
}

// weatherWalk steps the ambient conditions smoothly between ticks
// instead of resampling them, the same way the tension walk does.
type weatherWalk struct {
	rng     *rand.Rand
	current weather.Snapshot
	started bool
}

func (w *weatherWalk) next(now time.Time) *weather.Snapshot {
	if !w.started {
		w.current = weather.DefaultSnapshot(now)
		w.current.WindDirection = float64(w.rng.Intn(360))
		w.started = true
	} else {
		w.current.Temperature = clampFloat(w.current.Temperature+(w.rng.Float64()*2-1)*0.3, -10, 40)
		w.current.Humidity = clampFloat(w.current.Humidity+(w.rng.Float64()*2-1)*1.5, 20, 100)
		w.current.WindSpeed = clampFloat(w.current.WindSpeed+(w.rng.Float64()*2-1)*0.5, 0, 40)
		w.current.WindDirection = wrapDegrees(w.current.WindDirection + (w.rng.Float64()*2-1)*10)
		w.current.Pressure = clampFloat(w.current.Pressure+(w.rng.Float64()*2-1)*0.5, 950, 1060)
		w.current.WaveHeight = clampFloat(w.current.WaveHeight+(w.rng.Float64()*2-1)*0.1, 0, 10)
	}
	w.current.Timestamp = now
	snapshot := w.current
	return &snapshot
}

func clampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func wrapDegrees(degrees float64) float64 {
	wrapped := math.Mod(degrees, 360)
	if wrapped < 0 {
		wrapped += 360
	}
	return wrapped
}

// ReplaySource cycles through captured frames, perturbing each pass so
// the replay never repeats values exactly.
type ReplaySource struct {
	frames  []Frame
	index   int
	rng     *rand.Rand
	weather weatherWalk
}

// NewReplaySource wraps a frame list in a cyclic source.
func NewReplaySource(frames []Frame, rng *rand.Rand) (*ReplaySource, error) {
	if len(frames) == 0 {
		return nil, errors.New("simulation: no frames to replay")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &ReplaySource{frames: frames, rng: rng, weather: weatherWalk{rng: rng}}, nil
}

// Next produces the batch for one tick.
func (s *ReplaySource) Next(now time.Time) application.Batch {
	frame := s.frames[s.index]
	s.index = (s.index + 1) % len(s.frames)

	batch := application.Batch{}
	for lineID, sample := range frame.Lines {
		variation := 1 + (s.rng.Float64()*2-1)*replayJitter
		value := sample.Tension * variation
		if value < 0 {
			value = 0
		}
		length := sample.Length
		reading := tension.Reading{
			LineID:       lineID,
			Timestamp:    now,
			TensionValue: value,
			LineLength:   &length,
			RawTimestamp: frame.RawTimestamp,
		}
		if frame.DistanceToPort != nil {
			distance := *frame.DistanceToPort + (s.rng.Float64()-0.5)
			if distance < 10 {
				distance = 10
			}
			reading.DistanceToPort = &distance
		}
		batch.Readings = append(batch.Readings, reading)
	}
	batch.Weather = s.weather.next(now)
	return batch
}

// SyntheticSource generates readings with a bounded random walk around
// each line's reference tension, with occasional overload excursions.
// Used when no capture file is configured.
type SyntheticSource struct {
	rng     *rand.Rand
	current map[string]float64
	refs    map[string]float64
	maxes   map[string]float64
	order   []string
	weather weatherWalk
}

// NewSyntheticSource seeds the walk at each line's reference tension.
func NewSyntheticSource(refs, maxes map[string]float64, order []string, rng *rand.Rand) (*SyntheticSource, error) {
	if len(refs) == 0 {
		return nil, errors.New("simulation: no lines to synthesize")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	current := make(map[string]float64, len(refs))
	for lineID, ref := range refs {
		current[lineID] = ref
	}
	return &SyntheticSource{
		rng:     rng,
		current: current,
		refs:    refs,
		maxes:   maxes,
		order:   order,
		weather: weatherWalk{rng: rng},
	}, nil
}

// Next advances every line's walk by one step.
func (s *SyntheticSource) Next(now time.Time) application.Batch {
	batch := application.Batch{}
	for _, lineID := range s.order {
		ref := s.refs[lineID]
		value := s.current[lineID]

		// Mean-reverting step, about 4% of reference per tick.
		value += (ref - value) * 0.1
		value += (s.rng.Float64()*2 - 1) * ref * 0.04

		// Rare excursion pushes a line toward overload so the alert
		// pipeline sees real traffic.
		if s.rng.Float64() < 0.03 {
			value = ref * (1.2 + s.rng.Float64()*0.9)
		}
		if value < 0 {
			value = 0
		}
		if max := s.maxes[lineID]; max > 0 && value > max {
			value = max
		}
		s.current[lineID] = value

		batch.Readings = append(batch.Readings, tension.Reading{
			LineID:       lineID,
			Timestamp:    now,
			TensionValue: value,
		})
	}
	batch.Weather = s.weather.next(now)
	return batch
}
