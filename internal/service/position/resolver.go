// Package position computes where a notification is anchored given the
// detected viewport signals.
package position

import (
	"sync"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

// Obstruction thresholds: a detected UI element larger than these
// extents blocks its side of the viewport.
const (
	sidePanelInterferenceWidth = 200
	headerInterferenceHeight   = 120
)

// Responsive notification widths per device class.
const (
	desktopWidth = 384
	tabletWidth  = 344
	baseOffset   = 16
)

// categoryAnchors are the default anchors before any obstruction or
// attention override.
var categoryAnchors = map[domain.Category]domain.Anchor{
	domain.CategoryAuth:     domain.AnchorTopCenter,
	domain.CategoryClient:   domain.AnchorTopRight,
	domain.CategoryTask:     domain.AnchorBottomRight,
	domain.CategoryAI:       domain.AnchorBottomLeft,
	domain.CategoryDocument: domain.AnchorTopRight,
	domain.CategorySystem:   domain.AnchorTopRight,
}

// Resolver holds the latest viewport state and derives placements from
// it. The state is replaced wholesale on every resize signal and read
// immediately before each render.
type Resolver struct {
	mu       sync.RWMutex
	viewport domain.ViewportState
}

func NewResolver() *Resolver {
	return &Resolver{
		viewport: domain.ViewportState{Width: 1280, Height: 800},
	}
}

// UpdateViewport replaces the detected viewport signals.
func (r *Resolver) UpdateViewport(state domain.ViewportState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewport = state
}

// Viewport returns the current snapshot.
func (r *Resolver) Viewport() domain.ViewportState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.viewport
}

// Resolve computes the placement for one notification against the
// current viewport.
func (r *Resolver) Resolve(req *domain.NotificationRequest) domain.Placement {
	viewport := r.Viewport()
	return resolveFor(req, viewport)
}

func resolveFor(req *domain.NotificationRequest, viewport domain.ViewportState) domain.Placement {
	mobile := viewport.IsMobile()

	// Content demanding attention overrides category defaults: centered
	// on desktop, full screen on mobile.
	if req.RequiresAttention() {
		if mobile {
			return domain.Placement{
				Anchor:     domain.AnchorCenter,
				Width:      viewport.Width,
				FullScreen: true,
			}
		}
		return domain.Placement{
			Anchor:  domain.AnchorTopCenter,
			OffsetY: topOffset(viewport),
			Width:   widthFor(viewport),
		}
	}

	// An active modal overlays the category anchors; render above it,
	// centered at the top.
	if viewport.ModalOpen {
		return domain.Placement{
			Anchor:  domain.AnchorTopCenter,
			OffsetY: topOffset(viewport),
			Width:   widthFor(viewport),
		}
	}

	anchor, ok := categoryAnchors[req.Category]
	if !ok {
		anchor = domain.AnchorTopRight
	}

	if obstructed(anchor, viewport) {
		anchor = fallbackAnchor(anchor, mobile)
	}

	placement := domain.Placement{
		Anchor:  anchor,
		OffsetX: baseOffset,
		OffsetY: baseOffset,
		Width:   widthFor(viewport),
	}

	switch anchor {
	case domain.AnchorTopLeft, domain.AnchorTopRight, domain.AnchorTopCenter:
		placement.OffsetY = topOffset(viewport)
	case domain.AnchorCenter:
		placement.OffsetX = 0
		placement.OffsetY = 0
	}

	if viewport.KeyboardVisible {
		// The soft keyboard eats the bottom half; pin to the top.
		switch placement.Anchor {
		case domain.AnchorBottomLeft:
			placement.Anchor = domain.AnchorTopLeft
			placement.OffsetY = topOffset(viewport)
		case domain.AnchorBottomRight:
			placement.Anchor = domain.AnchorTopRight
			placement.OffsetY = topOffset(viewport)
		}
	}

	return placement
}

// obstructed reports whether a detected UI element blocks the side the
// anchor sits on.
func obstructed(anchor domain.Anchor, viewport domain.ViewportState) bool {
	switch anchor {
	case domain.AnchorTopRight, domain.AnchorBottomRight:
		return viewport.SidePanelWidth >= sidePanelInterferenceWidth
	case domain.AnchorTopCenter:
		return viewport.HeaderHeight >= headerInterferenceHeight
	default:
		return false
	}
}

// fallbackAnchor picks the alternate anchor when the default side is
// blocked: opposite side on desktop, center on mobile.
func fallbackAnchor(anchor domain.Anchor, mobile bool) domain.Anchor {
	if mobile {
		return domain.AnchorCenter
	}

	switch anchor {
	case domain.AnchorTopRight:
		return domain.AnchorTopLeft
	case domain.AnchorBottomRight:
		return domain.AnchorBottomLeft
	case domain.AnchorTopLeft:
		return domain.AnchorTopRight
	case domain.AnchorBottomLeft:
		return domain.AnchorBottomRight
	case domain.AnchorTopCenter:
		return domain.AnchorTopRight
	default:
		return anchor
	}
}

func widthFor(viewport domain.ViewportState) int {
	switch viewport.DeviceClass() {
	case domain.DeviceMobile:
		return viewport.Width - 2*baseOffset
	case domain.DeviceTablet:
		return tabletWidth
	default:
		return desktopWidth
	}
}

// topOffset clears the detected header.
func topOffset(viewport domain.ViewportState) int {
	if viewport.HeaderHeight > 0 {
		return viewport.HeaderHeight + baseOffset
	}
	return baseOffset
}
