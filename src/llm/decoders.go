package llm

import "encoding/json"

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// chatDecoder reads choices[0].delta.content from chat completion chunks.
type chatDecoder struct{}

func (chatDecoder) decode(payload []byte) (event, error) {
	var chunk chatChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return event{}, nil
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil {
		return event{}, nil
	}
	return event{text: *chunk.Choices[0].Delta.Content}, nil
}

type responsesEvent struct {
	Type     string `json:"type"`
	Delta    string `json:"delta"`
	Message  string `json:"message"`
	Response *struct {
		ID    string `json:"id"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"response"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// responsesDecoder reads typed events from the responses endpoint.
type responsesDecoder struct{}

func (*responsesDecoder) decode(payload []byte) (event, error) {
	var ev responsesEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return event{}, nil
	}
	switch ev.Type {
	case "response.created", "response.completed":
		if ev.Response != nil {
			return event{token: ev.Response.ID}, nil
		}
	case "response.output_text.delta":
		return event{text: ev.Delta}, nil
	case "response.failed":
		msg := "response failed"
		if ev.Response != nil && ev.Response.Error != nil && ev.Response.Error.Message != "" {
			msg = ev.Response.Error.Message
		}
		return event{}, protocolError(msg)
	case "error":
		msg := ev.Message
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		return event{}, protocolError(msg)
	}
	return event{}, nil
}
