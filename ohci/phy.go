package ohci

// PHY shadow register bit layouts, straight from hcd-ohci.c.
const (
	phyReg1IBR        = 0x40
	phyReg2NumPorts    = 0x0F
	phyReg4L           = 0x80
	phyReg4C           = 0x40
	phyReg5PEI         = 0x04
	phyReg7PageSelect  = 0xE0
)

// phyRead returns the PHY shadow byte at reg: one of the 8 base registers,
// or, for reg >= 8, a byte from the extension page currently selected by
// reg7's page-select field.
func (d *Device) phyRead(reg uint8) uint8 {
	if reg < 8 {
		return d.phy[reg]
	}
	page := (d.phy[7] & phyReg7PageSelect) >> 5
	return d.phyPages[page][reg&7]
}

// phyWrite writes data to the PHY shadow byte at reg. Writes to reg1 or
// reg5 mask off bit 6 (IBR / ISBR) before storing, and if the write's bit 6
// was set, trigger a bus reset — the PHY's way of telling the link to
// re-arbitrate. reg0 is read-only. Extension-page bytes are written
// unconditionally.
func (d *Device) phyWrite(reg uint8, data uint8) {
	if reg < 8 {
		switch reg {
		case 0:
			// read-only
		case 1, 5:
			d.phy[reg] = data &^ 0x40
			if data&0x40 != 0 {
				d.busReset()
			}
		default:
			d.phy[reg] = data
		}
		return
	}
	page := (d.phy[7] & phyReg7PageSelect) >> 5
	d.phyPages[page][reg&7] = data
}
