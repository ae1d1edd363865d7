package web

import "github.com/dokzlo13/lightdeck/internal/panel"

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type activeRequest struct {
	Active bool `json:"active"`
}

type brightnessRequest struct {
	Brightness int `json:"brightness"`
}

type createGroupRequest struct {
	Name string `json:"name"`
}

type reorderRequest struct {
	Group  string `json:"group" binding:"required"`
	Target string `json:"target" binding:"required"`
}

type colorRequest struct {
	Color string `json:"color" binding:"required"`
}

type powerRequest struct {
	Fade string `json:"fade"`
}

type tempoRequest struct {
	Tempo *int `json:"tempo" binding:"required"`
}

type lockRequest struct {
	Locked *bool `json:"locked"`
}

type chaseRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type saveSceneRequest struct {
	Name           string  `json:"name"`
	TransitionTime *uint16 `json:"transition_time"`
	Flash          bool    `json:"flash"`
}

type settingsRequest struct {
	FlashDelayMS *int `json:"flash_delay_ms"`
	GlobalTempo  *int `json:"global_tempo"`
}

// updateGroupRequest reuses the controller's flag set.
type updateGroupRequest = panel.Flags
