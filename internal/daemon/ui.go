package daemon

import (
	"embed"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jmaddaus/sprintboard/internal/model"
)

//go:embed ui/index.html
var uiFS embed.FS

// formField is one text input on the settings page.
type formField struct {
	model.SettingsField
	Value string
	IsSet bool
}

func (d *Daemon) settingsPage(c *gin.Context) {
	settings, err := d.settings.Load()
	if err != nil {
		c.String(http.StatusInternalServerError, "load settings: %v", err)
		return
	}

	fields := make([]formField, 0, len(model.SettingsFields))
	for _, f := range model.SettingsFields {
		val, _ := settings.Get(f.Key)
		ff := formField{SettingsField: f, IsSet: val != ""}
		// Secrets are never echoed back into the page.
		if !f.Secret {
			ff.Value = val
		}
		fields = append(fields, ff)
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"Fields": fields,
	})
}
