package notify

// IService announces the outcome of a clip run.
type IService interface {
	Post(payload map[string]interface{}) error
}
