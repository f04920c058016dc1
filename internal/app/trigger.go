package app

// TriggerAction is what a monitor does when an entry crosses a trigger offset.
type TriggerAction string

const (
	ActionConfirm TriggerAction = "confirm"
	ActionRemind  TriggerAction = "remind"
	ActionProcess TriggerAction = "process"
)

// Trigger fires Action when the entry is OffsetDays away from its due day
// (negative offsets are before the due day). A CatchUp trigger also fires on
// every later day, so a tick missed on the exact day is not lost.
type Trigger struct {
	OffsetDays int
	Action     TriggerAction
	CatchUp    bool
}

// TriggerSchedule is the ordered set of triggers a monitor evaluates per entry.
type TriggerSchedule []Trigger

var (
	AutopayTriggers = TriggerSchedule{
		{OffsetDays: -3, Action: ActionConfirm},
		{OffsetDays: 0, Action: ActionProcess, CatchUp: true},
	}
	ScheduledPaymentTriggers = TriggerSchedule{
		{OffsetDays: -1, Action: ActionRemind},
		{OffsetDays: 0, Action: ActionProcess, CatchUp: true},
	}
)

// Fired returns the actions due for an entry whose due day is daysUntil calendar days away.
func (s TriggerSchedule) Fired(daysUntil int) []TriggerAction {
	var actions []TriggerAction
	for _, t := range s {
		at := -t.OffsetDays
		if daysUntil == at || (t.CatchUp && daysUntil < at) {
			actions = append(actions, t.Action)
		}
	}
	return actions
}
