package worker

import "lingo-service/pkg/manager"

func init() {
	manager.RegisterComponentPlugin(&PipelineWorkerComponentPlugin{})
}
