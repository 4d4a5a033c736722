package session

import (
	"github.com/agent-browser/daemon/internal/browser"
	"github.com/agent-browser/daemon/internal/wire"
)

// Pages returns a copy of the current page set.
func (s *Session) Pages() []browser.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]browser.Page, len(s.pages))
	copy(out, s.pages)
	return out
}

// ActiveIndex returns the current active page index.
func (s *Session) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeIndex
}

// OpenPage appends a new page and makes it active, matching the ordered
// ordered page-set model.
func (s *Session) OpenPage(p browser.Page) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, p)
	s.activeIndex = len(s.pages) - 1
	return s.activeIndex
}

// SwitchPage validates index and makes it active.
func (s *Session) SwitchPage(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.pages) {
		return wire.New(wire.KindInvalidArgument, "tab index %d out of range", index)
	}
	s.activeIndex = index
	return nil
}

// ClosePage closes the page at index. Closing the last remaining page is
// refused: the last page cannot be closed via the tab-close operation;
// session Stop is the only way to remove it.
func (s *Session) ClosePage(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pages) <= 1 {
		return wire.New(wire.KindInvalidArgument, "cannot_close_last")
	}
	if index < 0 || index >= len(s.pages) {
		return wire.New(wire.KindInvalidArgument, "tab index %d out of range", index)
	}

	s.pages = append(s.pages[:index], s.pages[index+1:]...)
	if s.activeIndex >= index {
		// The sequence compacts; the active index shifts left if it pointed
		// at or past the closed page.
		if s.activeIndex > 0 {
			s.activeIndex--
		} else {
			s.activeIndex = 0
		}
	}
	return nil
}

// ActivePage returns the currently active page, or false if none exists.
func (s *Session) ActivePage() (browser.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeIndex < 0 || s.activeIndex >= len(s.pages) {
		return browser.Page{}, false
	}
	return s.pages[s.activeIndex], true
}

// SetActivePageURL updates the URL/Title of the active page, called after a
// navigation completes.
func (s *Session) SetActivePageURL(url, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeIndex < 0 || s.activeIndex >= len(s.pages) {
		return
	}
	s.pages[s.activeIndex].URL = url
	if title != "" {
		s.pages[s.activeIndex].Title = title
	}
}

// SetFrame sets the active frame selector; empty string means main frame.
func (s *Session) SetFrame(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeFrame = frame
}

// ActiveFrame returns the active frame selector, or "" for the main frame.
func (s *Session) ActiveFrame() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeFrame
}
