package splunk

import "strings"

// Result is one row of a search job's result set, keyed by field name.
type Result map[string]any

// MessageDTO is a diagnostic message attached to many REST responses.
type MessageDTO struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// LoginResponse is returned by the token login endpoint.
type LoginResponse struct {
	SessionKey string       `json:"sessionKey"`
	Messages   []MessageDTO `json:"messages,omitempty"`
}

// SubmitResponse is returned by job creation.
type SubmitResponse struct {
	SID      string       `json:"sid"`
	Messages []MessageDTO `json:"messages,omitempty"`
}

// JobStatusResponse is returned by the job status endpoint.
type JobStatusResponse struct {
	Entry []JobEntryDTO `json:"entry"`
}

// JobEntryDTO is a single job entry.
type JobEntryDTO struct {
	Name    string        `json:"name"`
	Content JobContentDTO `json:"content"`
}

// JobContentDTO contains the job fields the poll loop reads.
type JobContentDTO struct {
	IsDone        bool         `json:"isDone"`
	IsFailed      bool         `json:"isFailed"`
	DispatchState string       `json:"dispatchState"`
	ResultCount   int          `json:"resultCount"`
	Messages      []MessageDTO `json:"messages,omitempty"`
}

// content returns the first entry's content, or zero values when absent.
func (r JobStatusResponse) content() JobContentDTO {
	if len(r.Entry) == 0 {
		return JobContentDTO{}
	}
	return r.Entry[0].Content
}

// ResultsResponse is returned by the results endpoint.
type ResultsResponse struct {
	Preview  bool         `json:"preview"`
	Results  []Result     `json:"results"`
	Messages []MessageDTO `json:"messages,omitempty"`
}

func joinMessages(msgs []MessageDTO) string {
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Text != "" {
			texts = append(texts, m.Text)
		}
	}
	return strings.Join(texts, "; ")
}
