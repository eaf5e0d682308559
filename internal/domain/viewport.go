package domain

// ViewportState carries the detected UI signals the position resolver
// needs. It is refreshed on resize and immediately before each render.
type ViewportState struct {
	Width           int  `json:"width"`
	Height          int  `json:"height"`
	HeaderHeight    int  `json:"header_height"`
	SidePanelWidth  int  `json:"side_panel_width"`
	ModalOpen       bool `json:"modal_open"`
	KeyboardVisible bool `json:"keyboard_visible"`
}

// DeviceClass classifies the viewport by its width breakpoint.
func (v ViewportState) DeviceClass() DeviceClass {
	return ClassifyDevice(v.Width)
}

func (v ViewportState) IsMobile() bool {
	return v.DeviceClass() == DeviceMobile
}

// Anchor is a screen corner or edge a notification attaches to.
type Anchor string

const (
	AnchorTopRight    Anchor = "top-right"
	AnchorTopLeft     Anchor = "top-left"
	AnchorTopCenter   Anchor = "top-center"
	AnchorBottomRight Anchor = "bottom-right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorCenter      Anchor = "center"
)

func (a Anchor) String() string {
	return string(a)
}

// Placement is the computed position for rendering one notification.
type Placement struct {
	Anchor     Anchor `json:"anchor"`
	OffsetX    int    `json:"offset_x"`
	OffsetY    int    `json:"offset_y"`
	Width      int    `json:"width"`
	FullScreen bool   `json:"full_screen"`
}
