// Package selectloop is a portable tickloop backend, where I/O sources are
// Go channels.
//
// Channels are registered using [Watch]. Each flush receives at most one
// value from each ready channel, then fires due timers. Blocking flushes wait
// for whichever comes first: a watched channel becoming ready, or the
// nearest timer deadline.
//
//	backend := selectloop.New()
//	loop, _ := tickloop.New(backend)
//	lines := make(chan string)
//	selectloop.Watch(backend, lines, func(line string, ok bool) {
//	    if !ok {
//	        return // closed, watcher removed
//	    }
//	    fmt.Println(line)
//	})
package selectloop
