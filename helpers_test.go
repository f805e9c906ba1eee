package curator_test

import "github.com/agentstation/curator/pkg/workflow"

func newItem(entityID string, data album) (*workflow.Item[album], error) {
	return workflow.New(entityID, data, true)
}
