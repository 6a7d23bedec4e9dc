package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// getHostHealth reports this instance's own resource pressure, so an
// operator can tell a slow rebalance apart from a starved host before
// reaching for the coordination store's own metrics.
func (s *Server) getHostHealth(c *gin.Context) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var cpuPercent float64
	if len(percents) > 0 {
		cpuPercent = percents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cpuPercent":    cpuPercent,
		"memoryPercent": vm.UsedPercent,
		"memoryUsed":    vm.Used,
		"memoryTotal":   vm.Total,
	})
}

// getDBHealth exposes the audit database's connection pool health, only
// registered when a DBMonitor was wired at startup.
func (s *Server) getDBHealth(c *gin.Context) {
	status := s.dbMonitor.HealthCheck(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

type taskView struct {
	Name         string   `json:"name"`
	Instance     string   `json:"instance"`
	Generation   int      `json:"generation"`
	Partitions   []string `json:"partitions"`
	Dependencies []string `json:"dependencies"`
	LockOwner    string   `json:"lockOwner"`
}

func (s *Server) getAssignment(c *gin.Context) {
	cluster := c.Param("cluster")
	group := c.Param("group")

	assignment, err := s.store.ReadAssignment(c.Request.Context(), cluster, group)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var tasks []taskView
	for _, gt := range assignment.TasksForGroup(group) {
		var deps []string
		for dep := range gt.Task.Dependencies {
			deps = append(deps, dep)
		}
		tasks = append(tasks, taskView{
			Name:         gt.Task.Name,
			Instance:     gt.Instance,
			Generation:   gt.Task.Generation,
			Partitions:   gt.Task.Partitions,
			Dependencies: deps,
			LockOwner:    gt.Task.LockOwner,
		})
	}

	c.JSON(http.StatusOK, gin.H{"cluster": cluster, "group": group, "tasks": tasks})
}

func (s *Server) postRebalance(c *gin.Context) {
	cluster := c.Param("cluster")

	if err := s.orch.RebalanceCluster(c.Request.Context(), cluster); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.hub.broadcast(rebalanceEvent{Cluster: cluster, Kind: "rebalance"})
	c.JSON(http.StatusOK, gin.H{"status": "completed", "cluster": cluster})
}

type moveRequest struct {
	// Target maps instance name to the partitions the operator wants that
	// instance to own after the move.
	Target map[string][]string `json:"target" binding:"required"`
}

func (s *Server) postMove(c *gin.Context) {
	cluster := c.Param("cluster")
	groupPrefix := c.Param("group")

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := s.findGroup(c.Request.Context(), cluster, groupPrefix)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ignored, err := s.orch.MoveGroupPartitions(c.Request.Context(), cluster, group, req.Target)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.hub.broadcast(rebalanceEvent{Cluster: cluster, Group: groupPrefix, Kind: "move"})
	c.JSON(http.StatusOK, gin.H{"status": "completed", "ignored": ignored})
}
