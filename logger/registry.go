package logger

import "sync"

// components holds loggers registered by name. Library packages look their
// logger up here so that commands can reconfigure them after Init.
var components sync.Map // string -> *Logger

// Register installs l as the logger returned by Get(name).
func Register(name string, l *Logger) {
	components.Store(name, l)
}

// Unregister removes a logger installed by Register.
func Unregister(name string) {
	components.Delete(name)
}

// Get returns the logger registered under name. Unregistered names get the
// current global logger tagged with the name as its component.
func Get(name string) *Logger {
	if l, ok := components.Load(name); ok {
		return l.(*Logger)
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterDefaults pins component loggers derived from the global logger.
// Call it after Init so the components pick up the configured level.
func RegisterDefaults(names ...string) {
	global := GetGlobalLogger()
	for _, name := range names {
		Register(name, global.WithComponent(name))
	}
}
