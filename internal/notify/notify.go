// Package notify defines the per-player notification channel the engine
// drives. Implementations own the transport (websocket, chat DM, ...); the
// engine only decides when and for whom the calls happen.
package notify

// Channel is the view a single player sees. State transitions move the view
// wholesale; SetBoardView refreshes content in place with an optional notice.
type Channel interface {
	SetViewStarted() error
	SetViewPaused() error
	SetViewStopped() error
	// SetViewKicked closes the player's view; action names the cause
	// ("kicked" or "banned").
	SetViewKicked(action string) error
	SetBoardView(notice string) error
	RefreshRequestView() error
	SendNotice(msg string) error
}
