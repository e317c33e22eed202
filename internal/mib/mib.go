/*
Package mib builds the static skeleton of the agent's MIB in ascending OID order and refreshes
its dynamic cells from the telemetry package at the interval the reactor drives. It is the only
package that knows both the concrete OID layout of the subtrees §4.D names and how to encode
each column's value.
*/
package mib

import (
	"fmt"
	"time"

	"github.com/coreboard/snmpagentd/internal/ber"
	"github.com/coreboard/snmpagentd/internal/config"
	"github.com/coreboard/snmpagentd/internal/mibstore"
	"github.com/coreboard/snmpagentd/internal/oid"
	"github.com/coreboard/snmpagentd/internal/telemetry"
	"github.com/coreboard/snmpagentd/lalog"
)

// Interface and disk table column numbers, matching the conventional IF-MIB / UCD-SNMP-MIB
// layout so the subidentifiers sort the same way a reference agent's would.
const (
	colIfIndex        = 1
	colIfDescr        = 2
	colIfType         = 3
	colIfMtu          = 4
	colIfSpeed        = 5
	colIfPhysAddress  = 6
	colIfAdminStatus  = 7
	colIfOperStatus   = 8
	colIfLastChange   = 9
	colIfInOctets     = 10
	colIfInUcastPkts  = 11
	colIfInDiscards   = 13
	colIfInErrors     = 14
	colIfOutOctets    = 16
	colIfOutUcastPkts = 17
	colIfOutDiscards  = 19
	colIfOutErrors    = 20
)

var ifTableColumns = []int{
	colIfIndex, colIfDescr, colIfType, colIfMtu, colIfSpeed, colIfPhysAddress,
	colIfAdminStatus, colIfOperStatus, colIfLastChange,
	colIfInOctets, colIfInUcastPkts, colIfInDiscards, colIfInErrors,
	colIfOutOctets, colIfOutUcastPkts, colIfOutDiscards, colIfOutErrors,
}

const (
	colMemTotal   = 5
	colMemFree    = 6
	colMemShared  = 13
	colMemBuffers = 14
	colMemCached  = 15
)

var memColumns = []int{colMemTotal, colMemFree, colMemShared, colMemBuffers, colMemCached}

const (
	colDskIndex  = 1
	colDskPath   = 2
	colDskTotal  = 6
	colDskAvail  = 7
	colDskUsed   = 8
	colDskPctUse = 9
	colDskInode  = 10
)

var diskColumns = []int{colDskIndex, colDskPath, colDskTotal, colDskAvail, colDskUsed, colDskPctUse, colDskInode}

const (
	colLaIndex = 1
	colLaNames = 2
	colLaLoad  = 3
	colLaConfg = 4
	colLaInt   = 5
)

var loadColumns = []int{colLaIndex, colLaNames, colLaLoad, colLaConfg, colLaInt}

const (
	colSsCpuUser    = 50
	colSsCpuNice    = 51
	colSsCpuSystem  = 52
	colSsCpuIdle    = 53
	colSsRawIRQ     = 59
	colSsRawContext = 60
)

var cpuColumns = []int{colSsCpuUser, colSsCpuNice, colSsCpuSystem, colSsCpuIdle, colSsRawIRQ, colSsRawContext}

const (
	intCellCapacity    = 8
	stringCellInitial  = 48
	oidCellCapacity    = oid.MaxSubIDs*5 + 4
)

// MIB owns the built store plus the dynamic cells the updater touches on every refresh.
type MIB struct {
	Store *mibstore.Store

	startTime time.Time
	logger    *lalog.Logger

	sysUpTime *mibstore.Cell
	hrUpTime  *mibstore.Cell

	memCells map[int]*mibstore.Cell

	diskPaths  []string
	diskCells  map[int]map[int]*mibstore.Cell // column -> index -> cell

	loadCells map[int]map[int]*mibstore.Cell

	cpuCells map[int]*mibstore.Cell

	ifaceNames []string
	ifaceCells map[int]map[int]*mibstore.Cell
}

func oidPath(ids ...uint32) oid.OID {
	o, err := oid.New(ids)
	if err != nil {
		panic(fmt.Sprintf("mib: invalid built-in oid %v: %v", ids, err))
	}
	return o
}

func newIntCell() *mibstore.Cell { return mibstore.NewCell(intCellCapacity) }

func setInt(c *mibstore.Cell, v int32) error {
	var buf [intCellCapacity]byte
	n, err := ber.EncodeInteger(buf[:], 0, v)
	if err != nil {
		return err
	}
	return c.Set(buf[:n])
}

func setUnsigned(c *mibstore.Cell, tag byte, v uint32) error {
	var buf [intCellCapacity]byte
	n, err := ber.EncodeUnsigned32(buf[:], 0, tag, v)
	if err != nil {
		return err
	}
	return c.Set(buf[:n])
}

func newStringCell(s string) *mibstore.Cell {
	c := mibstore.NewGrowableCell(stringCellInitial)
	_ = setString(c, s)
	return c
}

func setString(c *mibstore.Cell, s string) error {
	buf := make([]byte, ber.EncodedTLVLength(len(s)))
	n, err := ber.EncodeOctetString(buf, 0, []byte(s))
	if err != nil {
		return err
	}
	return c.Set(buf[:n])
}

func setOctets(c *mibstore.Cell, b []byte) error {
	buf := make([]byte, ber.EncodedTLVLength(len(b)))
	n, err := ber.EncodeOctetString(buf, 0, b)
	if err != nil {
		return err
	}
	return c.Set(buf[:n])
}

// Build constructs the static skeleton of the MIB in exactly the ascending order §4.D
// specifies: system, interfaces, host, memory, disk, load, cpu. It fails with
// mibstore.ErrTableOverflow or oid.ErrOidOverflow if a configured limit is exceeded.
func Build(cfg *config.Config, logger *lalog.Logger) (*MIB, error) {
	b := mibstore.NewBuilder()
	m := &MIB{
		startTime:  time.Now(),
		logger:     logger,
		memCells:   map[int]*mibstore.Cell{},
		diskCells:  map[int]map[int]*mibstore.Cell{},
		loadCells:  map[int]map[int]*mibstore.Cell{},
		cpuCells:   map[int]*mibstore.Cell{},
		ifaceCells: map[int]map[int]*mibstore.Cell{},
		diskPaths:  cfg.Disks,
		ifaceNames: cfg.Interfaces,
	}

	if err := m.buildSystem(b, cfg); err != nil {
		return nil, err
	}
	if err := m.buildInterfaces(b, cfg); err != nil {
		return nil, err
	}
	if err := m.buildHost(b); err != nil {
		return nil, err
	}
	if err := m.buildMemory(b); err != nil {
		return nil, err
	}
	if err := m.buildDisk(b); err != nil {
		return nil, err
	}
	if err := m.buildLoad(b); err != nil {
		return nil, err
	}
	if err := m.buildCPU(b); err != nil {
		return nil, err
	}

	m.Store = b.Build()
	m.Update(true)
	return m, nil
}

func (m *MIB) buildSystem(b *mibstore.Builder, cfg *config.Config) error {
	vendor, err := oid.FromASCII(cfg.VendorOID)
	if err != nil {
		return err
	}
	sysName := cfg.Description
	if hn, ok := telemetry.ReadSystemInfo(); ok {
		sysName = hn.HostName
	}

	descrCell := newStringCell(cfg.Description)
	vendorBuf := make([]byte, oidCellCapacity)
	n, err := oid.Encode(vendorBuf, 0, vendor)
	if err != nil {
		return err
	}
	vendorCell := mibstore.NewCell(oidCellCapacity)
	if err := vendorCell.Set(vendorBuf[:n]); err != nil {
		return err
	}
	m.sysUpTime = newIntCell()
	contactCell := newStringCell(cfg.Contact)
	nameCell := newStringCell(sysName)
	locationCell := newStringCell(cfg.Location)

	entries := []struct {
		col  uint32
		cell *mibstore.Cell
	}{
		{1, descrCell}, {2, vendorCell}, {3, m.sysUpTime},
		{4, contactCell}, {5, nameCell}, {6, locationCell},
	}
	for _, e := range entries {
		if err := b.Add(oidPath(1, 3, 6, 1, 2, 1, 1, e.col, 0), e.cell); err != nil {
			return err
		}
	}
	return nil
}

func (m *MIB) buildInterfaces(b *mibstore.Builder, cfg *config.Config) error {
	ifCount := len(cfg.Interfaces)
	countCell := newIntCell()
	if err := setInt(countCell, int32(ifCount)); err != nil {
		return err
	}
	if err := b.Add(oidPath(1, 3, 6, 1, 2, 1, 2, 1, 0), countCell); err != nil {
		return err
	}
	for _, col := range ifTableColumns {
		m.ifaceCells[col] = map[int]*mibstore.Cell{}
		for i := 1; i <= ifCount; i++ {
			var cell *mibstore.Cell
			switch col {
			case colIfDescr, colIfPhysAddress:
				cell = newStringCell("")
			default:
				cell = newIntCell()
			}
			m.ifaceCells[col][i] = cell
			if err := b.Add(oidPath(1, 3, 6, 1, 2, 1, 2, 2, 1, uint32(col), uint32(i)), cell); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MIB) buildHost(b *mibstore.Builder) error {
	m.hrUpTime = newIntCell()
	return b.Add(oidPath(1, 3, 6, 1, 2, 1, 25, 1, 1, 0), m.hrUpTime)
}

func (m *MIB) buildMemory(b *mibstore.Builder) error {
	for _, col := range memColumns {
		cell := newIntCell()
		m.memCells[col] = cell
		if err := b.Add(oidPath(1, 3, 6, 1, 4, 1, 2021, 4, uint32(col), 0), cell); err != nil {
			return err
		}
	}
	return nil
}

func (m *MIB) buildDisk(b *mibstore.Builder) error {
	diskCount := len(m.diskPaths)
	for _, col := range diskColumns {
		m.diskCells[col] = map[int]*mibstore.Cell{}
		for i := 1; i <= diskCount; i++ {
			var cell *mibstore.Cell
			if col == colDskPath {
				cell = newStringCell(m.diskPaths[i-1])
			} else {
				cell = newIntCell()
			}
			m.diskCells[col][i] = cell
			if err := b.Add(oidPath(1, 3, 6, 1, 4, 1, 2021, 9, 1, uint32(col), uint32(i)), cell); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MIB) buildLoad(b *mibstore.Builder) error {
	for _, col := range loadColumns {
		m.loadCells[col] = map[int]*mibstore.Cell{}
		for i := 1; i <= 3; i++ {
			var cell *mibstore.Cell
			if col == colLaNames || col == colLaLoad || col == colLaConfg {
				cell = newStringCell("")
			} else {
				cell = newIntCell()
			}
			m.loadCells[col][i] = cell
			if err := b.Add(oidPath(1, 3, 6, 1, 4, 1, 2021, 10, 1, uint32(col), uint32(i)), cell); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MIB) buildCPU(b *mibstore.Builder) error {
	for _, col := range cpuColumns {
		cell := newIntCell()
		m.cpuCells[col] = cell
		if err := b.Add(oidPath(1, 3, 6, 1, 4, 1, 2021, 11, uint32(col), 0), cell); err != nil {
			return err
		}
	}
	return nil
}

// Update refreshes the dynamic portions of the MIB: sysUpTime and hrSystemUptime always, and
// — when full is true — every cell backed by telemetry. Telemetry read failures are logged at
// Info level and leave the corresponding cells zero-filled rather than aborting the refresh.
func (m *MIB) Update(full bool) {
	_ = setUnsigned(m.sysUpTime, ber.TagTimeTicks, uint32(time.Since(m.startTime).Seconds()*100))
	if sysInfo, ok := telemetry.ReadSystemInfo(); ok {
		_ = setUnsigned(m.hrUpTime, ber.TagTimeTicks, uint32(sysInfo.UptimeSec*100))
	} else {
		m.logger.Info("", nil, "failed to read system uptime")
	}
	if !full {
		return
	}
	m.updateMemory()
	m.updateDisks()
	m.updateLoad()
	m.updateCPU()
	m.updateInterfaces()
}

func (m *MIB) updateMemory() {
	info, ok := telemetry.ReadMemInfo()
	if !ok {
		m.logger.Info("", nil, "failed to read memory info")
	}
	values := map[int]int{
		colMemTotal: info.TotalKB, colMemFree: info.FreeKB, colMemShared: info.SharedKB,
		colMemBuffers: info.BuffersKB, colMemCached: info.CachedKB,
	}
	for col, v := range values {
		_ = setInt(m.memCells[col], int32(v))
	}
}

func (m *MIB) updateDisks() {
	for i, path := range m.diskPaths {
		idx := i + 1
		info, ok := telemetry.ReadDiskInfo(path)
		if !ok {
			m.logger.Info(path, nil, "failed to read disk info")
		}
		_ = setInt(m.diskCells[colDskIndex][idx], int32(idx))
		_ = setInt(m.diskCells[colDskTotal][idx], int32(info.TotalKB))
		_ = setInt(m.diskCells[colDskAvail][idx], int32(info.FreeKB))
		_ = setInt(m.diskCells[colDskUsed][idx], int32(info.UsedKB))
		_ = setInt(m.diskCells[colDskPctUse][idx], int32(info.BlockPercentUsed))
		_ = setInt(m.diskCells[colDskInode][idx], int32(info.InodePctUse))
	}
}

func (m *MIB) updateLoad() {
	info, ok := telemetry.ReadLoadInfo()
	if !ok {
		m.logger.Info("", nil, "failed to read load average")
	}
	rows := []struct {
		idx       int
		name      string
		value     float64
		threshold int
	}{
		{1, "Load-1", info.Load1, 1},
		{2, "Load-5", info.Load5, 1},
		{3, "Load-15", info.Load15, 1},
	}
	for _, r := range rows {
		_ = setInt(m.loadCells[colLaIndex][r.idx], int32(r.idx))
		_ = setString(m.loadCells[colLaNames][r.idx], r.name)
		_ = setString(m.loadCells[colLaLoad][r.idx], fmt.Sprintf("%.2f", r.value))
		_ = setString(m.loadCells[colLaConfg][r.idx], fmt.Sprintf("%d", r.threshold))
		_ = setInt(m.loadCells[colLaInt][r.idx], int32(r.value*100))
	}
}

func (m *MIB) updateCPU() {
	info, ok := telemetry.ReadCPUInfo()
	if !ok {
		m.logger.Info("", nil, "failed to read cpu stats")
	}
	values := map[int]uint32{
		colSsCpuUser: info.User, colSsCpuNice: info.Nice, colSsCpuSystem: info.System,
		colSsCpuIdle: info.Idle, colSsRawIRQ: info.IRQ, colSsRawContext: info.ContextSwitches,
	}
	for col, v := range values {
		_ = setUnsigned(m.cpuCells[col], ber.TagCounter, v)
	}
}

func (m *MIB) updateInterfaces() {
	for i, name := range m.ifaceNames {
		idx := i + 1
		info, ok := telemetry.ReadInterfaceInfo(idx, name)
		if !ok {
			m.logger.Info(name, nil, "failed to read interface info")
		}
		_ = setInt(m.ifaceCells[colIfIndex][idx], int32(idx))
		_ = setString(m.ifaceCells[colIfDescr][idx], name)
		_ = setInt(m.ifaceCells[colIfType][idx], 6) // ethernetCsmacd
		_ = setInt(m.ifaceCells[colIfMtu][idx], int32(info.MTU))
		_ = setUnsigned(m.ifaceCells[colIfSpeed][idx], ber.TagGauge, info.SpeedBPS)
		_ = setOctets(m.ifaceCells[colIfPhysAddress][idx], []byte(info.PhysAddress))
		_ = setInt(m.ifaceCells[colIfAdminStatus][idx], statusInt(info.AdminUp))
		_ = setInt(m.ifaceCells[colIfOperStatus][idx], statusInt(info.OperUp))
		_ = setUnsigned(m.ifaceCells[colIfLastChange][idx], ber.TagTimeTicks, 0)
		_ = setUnsigned(m.ifaceCells[colIfInOctets][idx], ber.TagCounter, info.InOctets)
		_ = setUnsigned(m.ifaceCells[colIfInUcastPkts][idx], ber.TagCounter, info.InPackets)
		_ = setUnsigned(m.ifaceCells[colIfInDiscards][idx], ber.TagCounter, info.InDiscards)
		_ = setUnsigned(m.ifaceCells[colIfInErrors][idx], ber.TagCounter, info.InErrors)
		_ = setUnsigned(m.ifaceCells[colIfOutOctets][idx], ber.TagCounter, info.OutOctets)
		_ = setUnsigned(m.ifaceCells[colIfOutUcastPkts][idx], ber.TagCounter, info.OutPackets)
		_ = setUnsigned(m.ifaceCells[colIfOutDiscards][idx], ber.TagCounter, info.OutDiscards)
		_ = setUnsigned(m.ifaceCells[colIfOutErrors][idx], ber.TagCounter, info.OutErrors)
	}
}

func statusInt(up bool) int32 {
	if up {
		return 1
	}
	return 2
}
