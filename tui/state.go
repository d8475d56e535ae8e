package tui

type state int

const (
	dashboardState state = iota
	loopsState
	errorState
)
