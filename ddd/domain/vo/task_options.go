package vo

// TaskOptions 提交任务时的可选参数
type TaskOptions struct {
	TargetLanguage string `json:"target_language,omitempty"`
	ModelProfile   string `json:"model_profile,omitempty"`
}

// WantsTranslation reports whether a target language was requested.
func (o TaskOptions) WantsTranslation() bool {
	return o.TargetLanguage != ""
}
