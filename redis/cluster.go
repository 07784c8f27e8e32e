package redis

import (
	"fmt"
	"strconv"

	"github.com/kormik/rediscore/resp"
)

// GetMasterNodes runs CLUSTER SLOTS synchronously and returns the
// master of every slot range in declaration order. Entries with fewer
// than three fields are skipped.
func (c *Connection) GetMasterNodes() ([]Host, error) {
	if c.Mode() != ModeCluster {
		return nil, ErrNotCluster
	}

	r, err := c.internalCommandSync("CLUSTER", "SLOTS")
	if err != nil {
		c.emitError("Cannot retrieve nodes list: " + err.Error())
		return nil, err
	}

	var masters []Host
	for _, slot := range r.Array() {
		details, ok := slot.(resp.Array)
		if !ok || len(details.Items) < 3 {
			continue
		}
		master, ok := details.Items[2].(resp.Array)
		if !ok || len(master.Items) < 2 {
			continue
		}
		port, err := strconv.Atoi(master.Items[1].String())
		if err != nil {
			continue
		}
		masters = append(masters, Host{Host: master.Items[0].String(), Port: port})
	}
	return masters, nil
}

// GetClusterKeys scans every master for keys matching pattern and
// delivers the union. Each master is visited exactly once; a scan
// error on any node aborts the traversal and surfaces that error.
func (c *Connection) GetClusterKeys(callback RawKeysCallback, pattern string) error {
	if c.Mode() != ModeCluster {
		return ErrNotCluster
	}

	masters, err := c.GetMasterNodes()
	if err != nil {
		return err
	}

	cfg := c.Config()
	result := make([][]byte, 0)

	c.mu.Lock()
	c.notVisitedMasters = masters
	c.mu.Unlock()

	var onConnect func(err string)
	onConnect = func(err string) {
		if err != "" {
			callback(result, fmt.Sprintf("Cannot connect to cluster node %s:%d", cfg.Host, cfg.Port))
			return
		}
		c.mu.Lock()
		collect := c.collectClusterNodeKeys
		c.mu.Unlock()
		if cerr := c.GetDatabaseKeys(collect, pattern, -1, defaultScanLimit); cerr != nil {
			callback(result, cerr.Error())
		}
	}

	c.mu.Lock()
	c.collectClusterNodeKeys = func(keys [][]byte, err string) {
		if err != "" {
			callback(nil, err)
			return
		}
		result = append(result, keys...)

		if !c.hasNotVisitedClusterNodes() {
			callback(result, "")
			return
		}
		c.clusterConnectToNextMasterNode(onConnect)
	}
	c.mu.Unlock()

	c.clusterConnectToNextMasterNode(onConnect)
	return nil
}

// FlushDbKeys flushes dbIndex. In cluster mode FLUSHDB runs on every
// master in turn; the first failure aborts the traversal and is
// reported. The callback fires exactly once.
func (c *Connection) FlushDbKeys(dbIndex int, callback func(err string)) error {
	if c.Mode() != ModeCluster {
		_, err := c.CommandWithCallback([][]byte{[]byte("FLUSHDB")}, c, func(_ Response, errText string) {
			if errText != "" {
				callback(fmt.Sprintf("Cannot flush db (%d): %s", dbIndex, errText))
			} else {
				callback("")
			}
		}, dbIndex)
		return err
	}

	masters, err := c.GetMasterNodes()
	if err != nil {
		return err
	}

	cfg := c.Config()

	c.mu.Lock()
	c.notVisitedMasters = masters
	c.mu.Unlock()

	var onConnect func(err string)
	onConnect = func(err string) {
		if err != "" {
			callback(fmt.Sprintf("Cannot connect to cluster node %s:%d", cfg.Host, cfg.Port))
			return
		}
		c.mu.Lock()
		flushed := c.cmdCallback
		c.mu.Unlock()
		if _, cerr := c.CommandWithCallback([][]byte{[]byte("FLUSHDB")}, c, flushed, -1); cerr != nil {
			callback(cerr.Error())
		}
	}

	c.mu.Lock()
	c.cmdCallback = func(_ Response, errText string) {
		if errText != "" {
			callback(fmt.Sprintf("Cannot flush db (%d): %s", dbIndex, errText))
			return
		}
		if !c.hasNotVisitedClusterNodes() {
			callback("")
			return
		}
		c.clusterConnectToNextMasterNode(onConnect)
	}
	c.mu.Unlock()

	c.clusterConnectToNextMasterNode(onConnect)
	return nil
}

// clusterConnectToNextMasterNode pops the next master, registers a
// one-shot post-connect hook and redirects the transporter. With
// OverrideClusterHost off the configured host name is retained and
// only the port switches, for clients reaching the cluster through a
// tunnel.
func (c *Connection) clusterConnectToNextMasterNode(callback func(err string)) {
	c.mu.Lock()
	if len(c.notVisitedMasters) == 0 {
		c.mu.Unlock()
		return
	}
	next := c.notVisitedMasters[0]
	c.notVisitedMasters = c.notVisitedMasters[1:]
	t := c.transporter
	cfg := c.config
	c.mu.Unlock()

	c.callAfterConnect(callback)

	if t == nil {
		return
	}
	if cfg.OverrideClusterHost {
		t.ReconnectTo(next.Host, next.Port)
	} else {
		t.ReconnectTo(cfg.Host, next.Port)
	}
}

func (c *Connection) hasNotVisitedClusterNodes() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notVisitedMasters) > 0
}
