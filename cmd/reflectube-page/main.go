//go:build js

// Command reflectube-page runs the engine inside a video page. Build it
// with gopherjs and load the output as a content script; the extension
// popup talks to it through window.postMessage.
package main

import (
	"context"
	"encoding/json"

	"github.com/gopherjs/gopherjs/js"
	"github.com/rs/zerolog"

	"github.com/guidoenr/reflectube/internal/ambient"
	"github.com/guidoenr/reflectube/internal/audio"
	"github.com/guidoenr/reflectube/internal/compositor"
	"github.com/guidoenr/reflectube/internal/config"
	"github.com/guidoenr/reflectube/internal/engine"
	"github.com/guidoenr/reflectube/internal/host/browser"
	"github.com/guidoenr/reflectube/internal/media"
	"github.com/guidoenr/reflectube/internal/render"
	"github.com/guidoenr/reflectube/internal/visualizer"
)

const storageKey = "reflectube.settings"

func main() {
	logger := zerolog.New(browser.Console{}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Str("app", "reflectube").Logger()

	cfg := loadSettings(logger)
	doc := browser.NewDocument()
	selector := media.NewSelector(doc)
	doc.OnMutation(selector.Invalidate)

	graph := audio.NewGraph(audio.Options{Factory: browser.AudioFactory(), Logger: logger})
	react := audio.NewReactivity(graph, nil, doc)
	extractor := ambient.New(ambient.Options{
		Strategy: ambient.StrategyFor(cfg.ColorStrategy, ambient.DefaultStride, ambient.DefaultMinScore),
		Logger:   logger,
	})

	machine := engine.New(engine.Options{
		Deps: render.Deps{
			Context:    context.Background(),
			Frames:     browser.Frames{},
			Sources:    media.Fallback{Selector: selector, Thumbnail: doc},
			Audio:      react,
			Extractor:  extractor,
			Visualizer: visualizer.New(),
			Display:    doc.Overlay(), // direct and legacy draw over the page
			Placement:  doc,
			Mutations:  doc,
			Devices:    browser.WebGLFactory(),
			Divisors:   compositor.DefaultDivisors,
			Logger:     logger,
		},
		Config: cfg,
		Logger: logger,
	})
	if err := machine.Start(); err != nil {
		logger.Error().Err(err).Msg("engine start failed")
		return
	}
	doc.TrackPointer(machine.Config)
	doc.UpdateMotion(machine.Config())

	apply := func(p config.Patch) bool {
		if err := machine.Apply(p); err != nil {
			logger.Warn().Err(err).Msg("update rejected")
			return false
		}
		cfg := machine.Config()
		doc.UpdateMotion(cfg)
		storeSettings(cfg, logger)
		return true
	}

	handle := func(data []byte) interface{} {
		msg, err := browser.ParseMessage(data)
		if err != nil {
			logger.Debug().Err(err).Msg("ignored message")
			return nil
		}
		switch msg.Type {
		case browser.TypeGetFPS:
			return browser.FPSReply{FPS: machine.Telemetry().FPS}
		case browser.TypeUpdateSettings:
			apply(*msg.Payload)
		}
		return nil
	}

	js.Global.Call("addEventListener", "message", func(ev *js.Object) {
		if ev.Get("source") != js.Global {
			return
		}
		data := ev.Get("data")
		if isNull(data) || data.Get("type") == js.Undefined {
			return
		}
		raw := js.Global.Get("JSON").Call("stringify", data).String()
		if reply := handle([]byte(raw)); reply != nil {
			js.Global.Call("postMessage", toJS(reply), "*")
		}
	})

	js.Global.Set("Reflectube", map[string]interface{}{
		"update": func(settings *js.Object) bool {
			raw := js.Global.Get("JSON").Call("stringify", map[string]interface{}{
				"type":    browser.TypeUpdateSettings,
				"payload": settings,
			}).String()
			msg, err := browser.ParseMessage([]byte(raw))
			if err != nil {
				return false
			}
			return apply(*msg.Payload)
		},
		"getFPS": func() float64 {
			return machine.Telemetry().FPS
		},
		"stop": func() {
			machine.Stop()
			react.Close()
			doc.Disconnect()
		},
	})
	logger.Info().Str("mode", string(cfg.Mode())).Msg("reflectube attached")
}

func loadSettings(logger zerolog.Logger) config.Config {
	cfg := config.Defaults()
	storage := js.Global.Get("localStorage")
	if isNull(storage) {
		return cfg
	}
	raw := storage.Call("getItem", storageKey)
	if isNull(raw) {
		return cfg
	}
	var patch config.Patch
	if err := json.Unmarshal([]byte(raw.String()), &patch); err != nil {
		logger.Warn().Err(err).Msg("discarding stored settings")
		return cfg
	}
	return patch.Apply(cfg)
}

func storeSettings(cfg config.Config, logger zerolog.Logger) {
	data, err := json.Marshal(config.Full(cfg))
	if err != nil {
		logger.Warn().Err(err).Msg("encode settings")
		return
	}
	if storage := js.Global.Get("localStorage"); !isNull(storage) {
		storage.Call("setItem", storageKey, string(data))
	}
}

func toJS(v interface{}) *js.Object {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return js.Global.Get("JSON").Call("parse", string(data))
}

func isNull(o *js.Object) bool {
	return o == nil || o == js.Undefined
}
