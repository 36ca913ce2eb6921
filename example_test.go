package recordcodec_test

import (
	"fmt"

	"github.com/surrealdb/recordcodec"
	"github.com/surrealdb/recordcodec/pkg/models"
	"github.com/surrealdb/recordcodec/pkg/recordstore"
)

func ExampleCodec_Save() {
	codec := recordcodec.New(recordstore.NewMemoryStore())
	defer codec.Close()

	arena := models.NewArena()
	city := arena.New("City")
	city.Set("name", models.String("Rome"))
	person := arena.New("Person")
	person.Set("name", models.String("Jay"))
	person.Set("age", models.Long(20))
	person.Set("city", city.Ref())

	// city has no identity yet, so it is embedded.
	data, err := codec.Encode(person)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(data))

	cityID, _, err := codec.Save(city, 5)
	if err != nil {
		panic(err)
	}
	personID, _, err := codec.Save(person, 6)
	if err != nil {
		panic(err)
	}

	loaded, err := codec.Load(personID, nil)
	if err != nil {
		panic(err)
	}
	ref, _ := loaded.Get("city")
	fmt.Println(cityID, personID, ref)

	// Output:
	// Person@name:"Jay",age:20l,city:(City@name:"Rome")
	// #5:0 #6:0 #5:0
}
