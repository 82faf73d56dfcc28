package ports

// Notifier surfaces user-facing outcomes. The core never waits on it.
type Notifier interface {
	ShowError(message string)
	ShowSuccess(message string)
	// ShowErrorWithNavigation reports an error that the user can resolve by
	// navigating to targetLayerPath (root first).
	ShowErrorWithNavigation(message, actionLabel string, targetLayerPath []string)
}

// ViewRefresher lets the rendering layer resynchronise its own node lists
// after a composite mutation.
type ViewRefresher interface {
	RefreshLayers(layerIDs []string, includeDescendants bool)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) ShowError(string)                                 {}
func (NopNotifier) ShowSuccess(string)                               {}
func (NopNotifier) ShowErrorWithNavigation(string, string, []string) {}

// NopRefresher ignores refresh requests.
type NopRefresher struct{}

func (NopRefresher) RefreshLayers([]string, bool) {}
