package hnsw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// File layout, little endian:
//
//	magic "DIHNSW01"
//	dim, m, m0, efConstruction, nodes uint32; top, entry int32; rows uint64
//	per node: levels uint32, rows uint32, rows []int64, vec [dim]float32,
//	          per level: links uint32, links []uint32
const magic = "DIHNSW01"

var ErrFormat = errors.New("invalid hnsw index file")

type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) put(v any) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

type decoder struct {
	r   io.Reader
	err error
}

func (d *decoder) get(v any) {
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, v)
	}
}

func (d *decoder) u32() uint32 {
	var v uint32
	d.get(&v)
	return v
}

func (g *graph) export(w io.Writer) error {
	e := &encoder{w: w}
	e.put([]byte(magic))
	e.put([]uint32{uint32(g.dim), uint32(g.m), uint32(g.m0), uint32(g.efConstruction), uint32(len(g.nodes))})
	e.put([]int32{int32(g.top), g.entry})
	e.put(uint64(g.rows))
	for _, n := range g.nodes {
		e.put([]uint32{uint32(len(n.links)), uint32(len(n.rows))})
		e.put(n.rows)
		e.put(n.vec)
		for _, links := range n.links {
			e.put(uint32(len(links)))
			if len(links) > 0 {
				e.put(links)
			}
		}
	}
	return e.err
}

func importGraph(r io.Reader, p Params) (*graph, error) {
	d := &decoder{r: r}
	head := make([]byte, len(magic))
	d.get(head)
	if d.err != nil {
		return nil, d.err
	}
	if string(head) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, head)
	}
	sizes := make([]uint32, 5)
	d.get(sizes)
	entry := make([]int32, 2)
	d.get(entry)
	var rows uint64
	d.get(&rows)
	if d.err != nil {
		return nil, d.err
	}

	p.M = int(sizes[1])
	p.EfConstruction = int(sizes[3])
	g := newGraph(p, int(sizes[0]))
	g.m0 = int(sizes[2])
	g.top = int(entry[0])
	g.entry = entry[1]
	g.rows = int(rows)

	count := int(sizes[4])
	if g.entry >= int32(count) || (count > 0) != (g.entry >= 0) {
		return nil, fmt.Errorf("%w: entry %d with %d nodes", ErrFormat, g.entry, count)
	}
	g.nodes = make([]*node, 0, count)
	for i := 0; i < count; i++ {
		levels, nrows := d.u32(), d.u32()
		if d.err != nil {
			return nil, d.err
		}
		if levels == 0 || levels > maxLevel+1 || nrows == 0 {
			return nil, fmt.Errorf("%w: node %d has %d levels and %d rows", ErrFormat, i, levels, nrows)
		}
		n := &node{
			vec:   make([]float32, g.dim),
			rows:  make([]int64, nrows),
			links: make([][]uint32, levels),
		}
		d.get(n.rows)
		d.get(n.vec)
		for l := range n.links {
			size := d.u32()
			if d.err != nil {
				return nil, d.err
			}
			if int(size) > count {
				return nil, fmt.Errorf("%w: node %d has %d links", ErrFormat, i, size)
			}
			if size > 0 {
				n.links[l] = make([]uint32, size)
				d.get(n.links[l])
			}
		}
		if d.err != nil {
			return nil, d.err
		}
		g.nodes = append(g.nodes, n)
		g.index(uint32(i))
	}
	return g, nil
}
