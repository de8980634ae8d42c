package main

import (
	"time"

	"github.com/unklstewy/skytrail/pkg/history"
	"github.com/unklstewy/skytrail/pkg/timeline"
)

// Playback speed multipliers selectable with +/-
var speeds = []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64}

const normalSpeed = 2 // index of 1x

// playback keeps the scrub position over a recording.
type playback struct {
	player   *history.Player
	at       time.Time
	speedIdx int
	paused   bool
}

func newPlayback(player *history.Player) *playback {
	return &playback{
		player:   player,
		at:       player.Start(),
		speedIdx: normalSpeed,
	}
}

func (pb *playback) speed() float64 { return speeds[pb.speedIdx] }

func (pb *playback) faster() {
	if pb.speedIdx < len(speeds)-1 {
		pb.speedIdx++
	}
}

func (pb *playback) slower() {
	if pb.speedIdx > 0 {
		pb.speedIdx--
	}
}

// seek moves the playback time by d, clamped to the recording.
func (pb *playback) seek(d time.Duration) {
	pb.at = pb.clamp(pb.at.Add(d))
}

func (pb *playback) jumpStart() { pb.at = pb.player.Start() }

func (pb *playback) jumpEnd() { pb.at = pb.player.End() }

func (pb *playback) clamp(t time.Time) time.Time {
	if t.Before(pb.player.Start()) {
		return pb.player.Start()
	}
	if t.After(pb.player.End()) {
		return pb.player.End()
	}
	return t
}

// step advances playback by elapsed wall time scaled by the speed and
// returns the traffic at the new position. Playback pauses at the end.
func (pb *playback) step(elapsed time.Duration) timeline.Frame {
	if !pb.paused {
		pb.at = pb.clamp(pb.at.Add(time.Duration(float64(elapsed) * pb.speed())))
		if !pb.at.Before(pb.player.End()) {
			pb.paused = true
		}
	}
	return pb.player.Frame(pb.at)
}

// progress returns how far through the recording playback is, from 0 to 1.
func (pb *playback) progress() float64 {
	total := pb.player.End().Sub(pb.player.Start())
	if total <= 0 {
		return 1
	}
	return float64(pb.at.Sub(pb.player.Start())) / float64(total)
}
