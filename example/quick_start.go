package main

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/nyan233/bptdb"
)

type user struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func main() {
	// create file with path is dbset/quick_start
	t := bptdb.NewBPTreeDisk[user](bptdb.Config{
		RootDir: "dbset",
		Name:    "quick_start",
	}, new(bptdb.JsonTypeCodec[user]))
	err := t.Init()
	if err != nil {
		panic(err)
	}
	// integer keys are stored as is
	for i := int32(0); i < 64; i++ {
		_, err = t.Put(bptdb.IntKey(i), user{Name: "user" + strconv.Itoa(int(i)), Score: rand.IntN(100)})
		if err != nil {
			panic(fmt.Errorf("put err:%v", err))
		}
	}
	// string keys are hashed into the same key space
	_, err = t.Put(bptdb.StringKey("admin"), user{Name: "admin", Score: 100})
	if err != nil {
		panic(fmt.Errorf("put err:%v", err))
	}
	for i := 0; i < 8; i++ {
		k := rand.Int32N(64)
		v, found, err := t.Get(bptdb.IntKey(k))
		if err != nil {
			panic(fmt.Errorf("get err:%v", err))
		}
		if !found {
			panic(fmt.Errorf("not found :%d", k))
		}
		fmt.Printf("tree.getVal key=%d, val=%+v\n", k, v)
	}
	v, _, err := t.Get(bptdb.StringKey("admin"))
	if err != nil {
		panic(fmt.Errorf("get err:%v", err))
	}
	fmt.Printf("tree.getVal key=admin, val=%+v\n", v)
	info, err := t.Check()
	if err != nil {
		panic(fmt.Errorf("check err:%v", err))
	}
	fmt.Printf("tree height=%d pages=%d keys=%d stat=%+v\n", info.Height, info.Pages, info.Keys, t.Stat())
	err = t.Close()
	if err != nil {
		panic(fmt.Errorf("close err:%v", err))
	}
}
