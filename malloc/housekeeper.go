package malloc

import "time"

// Start the housekeeper, that periodically advances the epoch and
// collects deferred frees on every shard. It also wakes up when pending
// frees cross "epoch.threshold". Without the housekeeper, application
// shall call Advanceepoch() and Collectall() by itself.
func (mgr *Manager) Start() {
	mgr.checkreleased()
	mgr.hmu.Lock()
	defer mgr.hmu.Unlock()
	if mgr.finch != nil {
		return
	}
	mgr.finch = make(chan struct{})
	mgr.hwg.Add(1)
	go housekeeper(mgr, mgr.epochtick, mgr.triggch, mgr.finch)
	infof("%v housekeeper started with %vms tick\n", mgr.logprefix, mgr.epochtick)
}

// Stop the housekeeper, if started. Can be restarted via Start().
func (mgr *Manager) Stop() {
	mgr.hmu.Lock()
	defer mgr.hmu.Unlock()
	if mgr.finch == nil {
		return
	}
	close(mgr.finch)
	mgr.hwg.Wait()
	mgr.finch = nil
	infof("%v housekeeper stopped\n", mgr.logprefix)
}

// go-routine to advance epochs and collect garbage.
func housekeeper(
	mgr *Manager, interval int64, triggch chan bool, finch chan struct{}) {

	defer mgr.hwg.Done()

	tick := time.NewTicker(time.Duration(interval) * time.Millisecond)
	defer tick.Stop()

loop:
	for {
		select {
		case <-tick.C:
		case <-triggch:
		case <-finch:
			break loop
		}
		mgr.Advanceepoch()
		mgr.Collectall()
	}
}
