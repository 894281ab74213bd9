package openai

import (
	"testing"

	"github.com/hupe1980/sessionmesh/model"
	"github.com/stretchr/testify/assert"
)

var _ model.Model = (*Model)(nil)

func TestBuildMessages_PrependsInstructions(t *testing.T) {
	msgs := buildMessages(model.Request{
		Instructions: "be brief",
		Messages: []model.Message{
			{Role: model.RoleUser, Text: "a"},
			{Role: model.RoleAssistant, Text: "b"},
			{Role: model.RoleUser, Text: "c"},
		},
	})
	assert.Len(t, msgs, 4)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	assert.NotNil(t, msgs[2].OfAssistant)
	assert.NotNil(t, msgs[3].OfUser)
}

func TestNewModel_Options(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.Model = "gpt-4o"
		o.APIKey = "sk-test"
	})
	assert.Equal(t, model.Info{Name: "gpt-4o", Provider: "openai"}, m.Info())
	assert.Equal(t, 0.7, m.opts.Temperature)
}
