package app

import (
	"context"
	"sync"

	"github.com/eiannone/keyboard"

	"github.com/guidoenr/reflectube/internal/config"
)

type action int

const (
	actionNone action = iota
	actionQuit
	actionCycleMode
	actionToggleVisualizer
	actionToggleAudio
	actionToggleMaster
	actionToggleHue
)

func (a action) String() string {
	switch a {
	case actionQuit:
		return "quit"
	case actionCycleMode:
		return "cycle-mode"
	case actionToggleVisualizer:
		return "toggle-visualizer"
	case actionToggleAudio:
		return "toggle-audio"
	case actionToggleMaster:
		return "toggle-master"
	case actionToggleHue:
		return "toggle-hue"
	}
	return "none"
}

// actionFor maps a key press. Unmapped keys still count as an interaction.
func actionFor(char rune, key keyboard.Key) action {
	switch {
	case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
		return actionQuit
	case key == keyboard.KeySpace:
		return actionToggleMaster
	}
	switch char {
	case 'q', 'Q':
		return actionQuit
	case 'm', 'M':
		return actionCycleMode
	case 'v', 'V':
		return actionToggleVisualizer
	case 'a', 'A':
		return actionToggleAudio
	case 'h', 'H':
		return actionToggleHue
	}
	return actionNone
}

// patchFor returns the configuration change for act given the current
// snapshot, or false when act changes nothing.
func patchFor(act action, cfg config.Config) (config.Patch, bool) {
	switch act {
	case actionCycleMode:
		return config.ModePatch(config.NextMode(cfg.Mode())), true
	case actionToggleVisualizer:
		return config.Patch{VisualizerActive: config.Bool(!cfg.VisualizerActive)}, true
	case actionToggleAudio:
		return config.Patch{AudioEnabled: config.Bool(!cfg.AudioEnabled)}, true
	case actionToggleMaster:
		return config.Patch{MasterSwitch: config.Bool(!cfg.MasterSwitch)}, true
	case actionToggleHue:
		return config.Patch{HueLoop: config.Bool(!cfg.HueLoop)}, true
	}
	return config.Patch{}, false
}

func (a *App) startInputListener(ctx context.Context) <-chan action {
	if err := keyboard.Open(); err != nil {
		a.log.Warn().Err(err).Msg("keyboard input disabled")
		return nil
	}

	events := make(chan action, 16)

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			act := actionFor(char, key)
			if act == actionQuit {
				events <- act
				return
			}
			select {
			case events <- act:
			default:
			}
		}
	}()
	return events
}
