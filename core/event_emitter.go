package session

import events "github.com/koscakluka/ema-live/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(callbacks sessionCallbacks) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.StateChanged:
			if callbacks.onStateChanged != nil {
				if state, ok := parseConnectionState(typedEvent.To); ok {
					callbacks.onStateChanged(state, typedEvent.Err)
				}
			}
		case events.SystemMessage:
			if callbacks.onMessage != nil {
				callbacks.onMessage(typedEvent.Message)
			}
		case events.UserTranscriptFinal:
			if callbacks.onMessage != nil {
				callbacks.onMessage(typedEvent.Message)
			}
		case events.AssistantTranscriptFinal:
			if callbacks.onMessage != nil {
				callbacks.onMessage(typedEvent.Message)
			}
		}

		if callbacks.onEvent != nil {
			callbacks.onEvent(event)
		}
	}
}
