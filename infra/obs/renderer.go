package obs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/obsched/core/logger"
	"github.com/kilianp07/obsched/core/playback"
)

const restartDelay = 100 * time.Millisecond

// Requester sends a single obs-websocket request.
type Requester interface {
	Request(ctx context.Context, requestType string, data, out any) error
}

// Renderer plays scheduled media in OBS.
type Renderer struct {
	api   Requester
	cfg   Config
	log   logger.Logger
	sleep func(time.Duration)
}

var _ playback.Renderer = (*Renderer)(nil)

// NewRenderer wraps api with cfg. cfg should have had SetDefaults applied.
func NewRenderer(api Requester, cfg Config, log logger.Logger) *Renderer {
	return &Renderer{api: api, cfg: cfg, log: logger.Nop(log), sleep: time.Sleep}
}

func (r *Renderer) scene(s string) string {
	if s != "" {
		return s
	}
	return r.cfg.Scene
}

// Play creates or reuses an ffmpeg source for the media and restarts it.
func (r *Renderer) Play(ctx context.Context, req playback.PlayRequest) (playback.PlayResult, error) {
	scene := r.scene(req.Scene)
	r.setMuted(ctx, true)

	itemID, err := r.ensureInput(ctx, scene, req.SourceID, req.MediaPath)
	if err != nil {
		return playback.PlayResult{}, err
	}

	layer := req.Layer
	if layer == nil {
		layer = r.cfg.Layer
	}
	if layer != nil {
		if err := r.api.Request(ctx, "SetSceneItemIndex", map[string]any{
			"sceneName": scene, "sceneItemId": itemID, "sceneItemIndex": *layer,
		}, nil); err != nil {
			r.log.Warnf("obs: set index of %s: %v", req.SourceID, err)
		}
	}

	if _, err := r.ApplyAudioMonitoring(ctx); err != nil {
		r.log.Warnf("obs: audio monitoring: %v", err)
	}
	if err := r.applyTransform(ctx, scene, itemID); err != nil {
		r.log.Warnf("obs: transform %s: %v", req.SourceID, err)
	}
	if err := r.restart(ctx, scene, itemID, req.SourceID, req.MediaPath); err != nil {
		return playback.PlayResult{}, err
	}
	if err := r.setMonitorType(ctx, req.SourceID); err != nil {
		r.log.Warnf("obs: monitor type of %s: %v", req.SourceID, err)
	}
	return playback.PlayResult{Handle: strconv.Itoa(itemID)}, nil
}

// ensureInput creates the source, falling back to updating an existing one.
func (r *Renderer) ensureInput(ctx context.Context, scene, source, path string) (int, error) {
	var created struct {
		SceneItemID int `json:"sceneItemId"`
	}
	err := r.api.Request(ctx, "CreateInput", map[string]any{
		"sceneName":        scene,
		"inputName":        source,
		"inputKind":        "ffmpeg_source",
		"inputSettings":    map[string]any{"local_file": path},
		"sceneItemEnabled": true,
	}, &created)
	if err == nil {
		return created.SceneItemID, nil
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return 0, fmt.Errorf("create input %s: %w", source, err)
	}
	r.log.Debugf("obs: reusing input %s: %v", source, err)

	itemID, err := r.sceneItemID(ctx, scene, source)
	if err != nil {
		return 0, err
	}
	if err := r.api.Request(ctx, "SetInputSettings", map[string]any{
		"inputName": source, "inputSettings": map[string]any{"local_file": path}, "overlay": true,
	}, nil); err != nil {
		return 0, fmt.Errorf("update input %s: %w", source, err)
	}
	if err := r.setEnabled(ctx, scene, itemID, true); err != nil {
		return 0, err
	}
	return itemID, nil
}

func (r *Renderer) sceneItemID(ctx context.Context, scene, source string) (int, error) {
	var out struct {
		SceneItemID int `json:"sceneItemId"`
	}
	if err := r.api.Request(ctx, "GetSceneItemId", map[string]any{
		"sceneName": scene, "sourceName": source,
	}, &out); err != nil {
		return 0, fmt.Errorf("find %s in %s: %w", source, scene, err)
	}
	return out.SceneItemID, nil
}

func (r *Renderer) setEnabled(ctx context.Context, scene string, itemID int, on bool) error {
	if err := r.api.Request(ctx, "SetSceneItemEnabled", map[string]any{
		"sceneName": scene, "sceneItemId": itemID, "sceneItemEnabled": on,
	}, nil); err != nil {
		return fmt.Errorf("set item %d enabled=%t: %w", itemID, on, err)
	}
	return nil
}

func (r *Renderer) applyTransform(ctx context.Context, scene string, itemID int) error {
	var video struct {
		BaseWidth  float64 `json:"baseWidth"`
		BaseHeight float64 `json:"baseHeight"`
	}
	if err := r.api.Request(ctx, "GetVideoSettings", nil, &video); err != nil {
		return err
	}
	relW, relH := r.cfg.RelativeWidth, r.cfg.RelativeHeight
	if relW <= 0 {
		relW = 1
	}
	if relH <= 0 {
		relH = 1
	}
	return r.api.Request(ctx, "SetSceneItemTransform", map[string]any{
		"sceneName":   scene,
		"sceneItemId": itemID,
		"sceneItemTransform": map[string]any{
			"positionX":    r.cfg.LeftMargin,
			"positionY":    r.cfg.TopMargin,
			"boundsType":   "OBS_BOUNDS_STRETCH",
			"boundsWidth":  video.BaseWidth * relW,
			"boundsHeight": video.BaseHeight * relH,
		},
	}, nil)
}

// restart re-applies the file with the item hidden so playback starts
// from the beginning.
func (r *Renderer) restart(ctx context.Context, scene string, itemID int, source, path string) error {
	if err := r.setEnabled(ctx, scene, itemID, false); err != nil {
		return err
	}
	r.sleep(restartDelay)
	if err := r.api.Request(ctx, "SetInputSettings", map[string]any{
		"inputName": source, "inputSettings": map[string]any{"local_file": path},
	}, nil); err != nil {
		return fmt.Errorf("reload %s: %w", source, err)
	}
	return r.setEnabled(ctx, scene, itemID, true)
}

func (r *Renderer) setMuted(ctx context.Context, muted bool) {
	for _, src := range r.cfg.SourcesToMute {
		if err := r.api.Request(ctx, "SetInputMute", map[string]any{
			"inputName": src, "inputMuted": muted,
		}, nil); err != nil {
			r.log.Warnf("obs: mute %s=%t: %v", src, muted, err)
		}
	}
}

func (r *Renderer) setMonitorType(ctx context.Context, input string) error {
	return r.api.Request(ctx, "SetInputAudioMonitorType", map[string]any{
		"inputName": input, "monitorType": monitorType(r.cfg.AudioMonitorMode),
	}, nil)
}

func monitorType(mode string) string {
	if t, ok := monitorTypes[mode]; ok {
		return t
	}
	return monitorTypes[MonitorAndOutput]
}

// Stop removes the source when req.Clear is set, otherwise hides it.
// Muted sources are restored either way.
func (r *Renderer) Stop(ctx context.Context, req playback.StopRequest) error {
	scene := r.scene(req.Scene)
	var err error
	if req.Clear {
		if rmErr := r.api.Request(ctx, "RemoveInput", map[string]any{"inputName": req.SourceID}, nil); rmErr != nil {
			err = fmt.Errorf("remove %s: %w", req.SourceID, rmErr)
		}
	} else {
		itemID, findErr := r.sceneItemID(ctx, scene, req.SourceID)
		if findErr == nil {
			err = r.setEnabled(ctx, scene, itemID, false)
		} else {
			err = findErr
		}
	}
	r.setMuted(ctx, false)
	return err
}

// SetScene switches the program scene.
func (r *Renderer) SetScene(ctx context.Context, scene string) error {
	if err := r.api.Request(ctx, "SetCurrentProgramScene", map[string]any{"sceneName": scene}, nil); err != nil {
		return fmt.Errorf("switch to scene %s: %w", scene, err)
	}
	return nil
}

// CurrentScene returns the program scene. It doubles as a heartbeat.
func (r *Renderer) CurrentScene(ctx context.Context) (string, error) {
	var out struct {
		Name       string `json:"currentProgramSceneName"`
		LegacyName string `json:"sceneName"`
	}
	if err := r.api.Request(ctx, "GetCurrentProgramScene", nil, &out); err != nil {
		return "", err
	}
	if out.Name == "" {
		return out.LegacyName, nil
	}
	return out.Name, nil
}

func (r *Renderer) StartStream(ctx context.Context) error {
	return r.api.Request(ctx, "StartStream", nil, nil)
}

func (r *Renderer) StopStream(ctx context.Context) error {
	return r.api.Request(ctx, "StopStream", nil, nil)
}

func (r *Renderer) StreamActive(ctx context.Context) (bool, error) {
	var out struct {
		OutputActive bool `json:"outputActive"`
	}
	if err := r.api.Request(ctx, "GetStreamStatus", nil, &out); err != nil {
		return false, err
	}
	return out.OutputActive, nil
}

// MonitoringResult lists the inputs touched by ApplyAudioMonitoring.
type MonitoringResult struct {
	Mode    string   `json:"mode"`
	Applied []string `json:"applied"`
	Failed  []string `json:"failed"`
}

// ApplyAudioMonitoring sets the configured monitor type on the listed
// sources and on every input whose name starts with the configured prefix.
func (r *Renderer) ApplyAudioMonitoring(ctx context.Context) (MonitoringResult, error) {
	res := MonitoringResult{Mode: r.cfg.AudioMonitorMode, Applied: []string{}, Failed: []string{}}
	targets := append([]string(nil), r.cfg.AudioMonitorSources...)
	if r.cfg.AudioMonitorPrefix != "" {
		var list struct {
			Inputs []struct {
				InputName string `json:"inputName"`
			} `json:"inputs"`
		}
		if err := r.api.Request(ctx, "GetInputList", nil, &list); err != nil {
			return res, fmt.Errorf("list inputs: %w", err)
		}
		for _, in := range list.Inputs {
			if strings.HasPrefix(in.InputName, r.cfg.AudioMonitorPrefix) {
				targets = append(targets, in.InputName)
			}
		}
	}
	seen := make(map[string]bool, len(targets))
	for _, name := range targets {
		if seen[name] {
			continue
		}
		seen[name] = true
		if err := r.setMonitorType(ctx, name); err != nil {
			r.log.Debugf("obs: monitor type of %s: %v", name, err)
			res.Failed = append(res.Failed, name)
			continue
		}
		res.Applied = append(res.Applied, name)
	}
	return res, nil
}
