package pkg

type Action string

const (
	ActionPlayWhite   Action = "Play White"
	ActionPlayBlack   Action = "Play Black"
	ActionEngineMatch Action = "Engine vs Engine"
	ActionPause       Action = "Pause"
	ActionResume      Action = "Resume"
	ActionStop        Action = "Stop"
	ActionEdit        Action = "Edit"
	ActionContinue    Action = "Continue"
	ActionContinueEvE Action = "Continue Engines"
	ActionWhiteEngine Action = "White Engine"
	ActionBlackEngine Action = "Black Engine"
	ActionFlip        Action = "Flip"
	ActionExit        Action = "Exit"
)

// MenuActions lists what the side menu offers for the current state.
func MenuActions(s TurnState, editing bool) []Action {
	if editing {
		return []Action{ActionContinue, ActionContinueEvE, ActionStop, ActionFlip, ActionExit}
	}
	actions := []Action{ActionPlayWhite, ActionPlayBlack, ActionEngineMatch}
	if s.Active && s.Mode == EngineVsEngine {
		if s.Paused {
			actions = append(actions, ActionResume)
		} else {
			actions = append(actions, ActionPause)
		}
	}
	if s.Active {
		actions = append(actions, ActionStop)
	}
	return append(actions, ActionEdit, ActionWhiteEngine, ActionBlackEngine, ActionFlip, ActionExit)
}
