package monorepo

// handlers is the static registry in detection priority order.
var handlers = []Handler{
	nxHandler{},
	newTurboHandler(),
	yarnHandler{},
	pnpmHandler{},
	npmHandler{},
}

// Handlers returns all handlers in detection priority order.
func Handlers() []Handler {
	out := make([]Handler, len(handlers))
	copy(out, handlers)
	return out
}

// HandlerFor returns the handler for tool.
func HandlerFor(tool Tool) (Handler, bool) {
	for _, h := range handlers {
		if h.Tool() == tool {
			return h, true
		}
	}
	return nil, false
}
