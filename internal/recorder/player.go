package recorder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"zoom-kiosk/internal/capture"
)

// ErrAlreadyPlaying is returned by Play while another playback runs.
var ErrAlreadyPlaying = errors.New("playback already in progress")

const (
	MinPlaybackSpeed = 0.1
	MaxPlaybackSpeed = 5.0

	defaultScreenWidth  = 1920
	defaultScreenHeight = 1080

	// Wind mouse parameters: gravity, wind, max step, damping distance.
	windGravity  = 9.0
	windForce    = 5.0
	windMaxStep  = 15.0
	windDampDist = 12.0
	windMaxSteps = 10000

	stepDelay = 1500 * time.Microsecond
)

type point struct{ x, y int }

// Player replays saved clicks through an Injector. The pointer travels
// from its position through the screen centre and a point near the top
// edge before each click, along a wind mouse path.
type Player struct {
	injector Injector
	speed    float64
	logger   zerolog.Logger

	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	playing bool
}

// NewPlayer creates a player. speed scales the delay between clicks and is
// clamped to [MinPlaybackSpeed, MaxPlaybackSpeed]; zero means 1.
func NewPlayer(injector Injector, speed float64, logger zerolog.Logger) *Player {
	if speed == 0 {
		speed = 1
	}
	speed = math.Max(MinPlaybackSpeed, math.Min(MaxPlaybackSpeed, speed))
	return &Player{
		injector: injector,
		speed:    speed,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:    sleepCtx,
	}
}

// Playing reports whether a playback is in progress.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Play replays the clicks of rec in offset order and returns how many were
// clicked. It stops early when ctx is cancelled.
func (p *Player) Play(ctx context.Context, rec *Recording) (int, error) {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return 0, ErrAlreadyPlaying
	}
	p.playing = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	actions := make([]Action, 0, len(rec.Actions))
	for _, a := range rec.Actions {
		if a.Type == capture.KindClick {
			actions = append(actions, a)
		}
	}
	if len(actions) == 0 {
		return 0, nil
	}
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].OffsetMs < actions[j].OffsetMs })

	x, y, err := p.injector.CursorPos()
	if err != nil {
		return 0, err
	}
	center, top := p.waypoints()

	p.logger.Info().Int("clicks", len(actions)).Float64("speed", p.speed).Msg("replaying recording")

	var prev int64
	played := 0
	for _, a := range actions {
		if d := a.OffsetMs - prev; d > 0 {
			wait := time.Duration(float64(d)/p.speed) * time.Millisecond
			if err := p.sleep(ctx, wait); err != nil {
				return played, err
			}
		}

		if x, y, err = p.injector.CursorPos(); err != nil {
			return played, err
		}
		for _, wp := range []point{center, top, {a.X, a.Y}} {
			if x == wp.x && y == wp.y {
				continue
			}
			if err := p.glide(ctx, point{x, y}, wp); err != nil {
				return played, err
			}
			x, y = wp.x, wp.y
		}

		if err := p.sleep(ctx, time.Duration(5+p.rng.Intn(10))*time.Millisecond); err != nil {
			return played, err
		}
		button := a.Button
		if button == "" {
			button = capture.ButtonLeft
		}
		if err := p.injector.Click(button); err != nil {
			return played, fmt.Errorf("click %d: %w", played+1, err)
		}
		played++
		prev = a.OffsetMs
	}
	return played, nil
}

func (p *Player) waypoints() (center, top point) {
	w, h, err := p.injector.ScreenSize()
	if err != nil || w <= 0 || h <= 0 {
		w, h = defaultScreenWidth, defaultScreenHeight
	}
	return point{w / 2, h / 2}, point{w/2 - 100, 25}
}

func (p *Player) glide(ctx context.Context, from, to point) error {
	for _, pt := range windPath(p.rng, from, to) {
		if err := p.injector.MoveTo(pt.x, pt.y); err != nil {
			return err
		}
		if err := p.sleep(ctx, stepDelay); err != nil {
			return err
		}
	}
	return nil
}

// windPath returns the pointer positions visited moving from one point to
// another. Consecutive positions differ and the last one is to.
func windPath(rng *rand.Rand, from, to point) []point {
	var (
		path    []point
		cx, cy  = float64(from.x), float64(from.y)
		dx, dy  = float64(to.x), float64(to.y)
		vx, vy  float64
		wx, wy  float64
		maxStep = windMaxStep
		last    = from
		sqrt3   = math.Sqrt(3)
		sqrt5   = math.Sqrt(5)
	)

	for i := 0; i < windMaxSteps; i++ {
		dist := math.Hypot(dx-cx, dy-cy)
		if dist < 1 {
			break
		}

		wind := math.Min(windForce, dist)
		if dist >= windDampDist {
			wx = wx/sqrt3 + (2*rng.Float64()-1)*wind/sqrt5
			wy = wy/sqrt3 + (2*rng.Float64()-1)*wind/sqrt5
		} else {
			wx /= sqrt3
			wy /= sqrt3
			if maxStep < 3 {
				maxStep = rng.Float64()*3 + 3
			} else {
				maxStep /= sqrt5
			}
		}

		vx += wx + windGravity*(dx-cx)/dist
		vy += wy + windGravity*(dy-cy)/dist
		if v := math.Hypot(vx, vy); v > maxStep {
			clip := maxStep/2 + rng.Float64()*maxStep/2
			vx = vx / v * clip
			vy = vy / v * clip
		}

		cx += vx
		cy += vy
		next := point{int(math.Round(cx)), int(math.Round(cy))}
		if next != last {
			path = append(path, next)
			last = next
		}
	}

	if last != to {
		path = append(path, to)
	}
	return path
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
